package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

// buildKey scopes a request id to the route and the calling account.
func buildKey(method, path string, account common.Address, requestID string) string {
	return "idemp:ax:" + strings.ToLower(method) + ":" + path + ":" + strings.ToLower(account.Hex()) + ":" + requestID
}

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-7][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

func validReqID(id string) bool {
	return reUUID.MatchString(id) || reHex32.MatchString(id)
}

// parseAccount accepts a 0x-prefixed 20-byte hex address. The zero address
// never signs anything and is rejected.
func parseAccount(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, errors.New("missing " + HeaderAccountID)
	}
	if !strings.HasPrefix(raw, "0x") || !common.IsHexAddress(raw) {
		return common.Address{}, errors.New("invalid " + HeaderAccountID)
	}
	a := common.HexToAddress(raw)
	if a == (common.Address{}) {
		return common.Address{}, errors.New(HeaderAccountID + " must not be the zero address")
	}
	return a, nil
}

// parseRequestAt accepts epoch seconds, epoch milliseconds, or RFC3339 with
// a zone. Naive local timestamps are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	// RFC3339Nano also reads plain RFC3339
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

// idempHeaders is the validated header set of one mutating call.
type idempHeaders struct {
	requestID string
	at        time.Time
	account   common.Address
}

func parseHeaders(h http.Header, now time.Time) (idempHeaders, error) {
	var out idempHeaders
	out.requestID = strings.ToLower(strings.TrimSpace(h.Get(HeaderRequestID)))
	if out.requestID == "" {
		return out, errors.New("missing " + HeaderRequestID)
	}
	if !validReqID(out.requestID) {
		return out, errors.New("invalid " + HeaderRequestID + " format")
	}
	at, err := parseRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return out, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return out, errors.New(HeaderRequestAt + " too skewed")
	}
	out.at = at
	if out.account, err = parseAccount(h.Get(HeaderAccountID)); err != nil {
		return out, err
	}
	return out, nil
}

// ---- Redis store ----

type idempStore struct{ rdb redis.Cmdable }

// reserve claims key for an in-flight request; false means it was taken.
func (s idempStore) reserve(ctx context.Context, key string, e idempEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func (s idempStore) load(ctx context.Context, key string) (idempEntry, error) {
	var e idempEntry
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, err
	}
	return e, nil
}

func (s idempStore) finish(ctx context.Context, key string, e idempEntry, ttl time.Duration) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

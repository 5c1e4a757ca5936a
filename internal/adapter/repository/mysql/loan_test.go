package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "chainlend-backend/internal/domain/loan"
	"chainlend-backend/internal/domain/money"
	"chainlend-backend/internal/testutil/sqlitedb"

	"github.com/ethereum/go-ethereum/common"
)

var (
	borrowerA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	borrowerB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	lenderA   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func makeRequest(id uint64, borrower common.Address, status domain.RequestStatus) *domain.Request {
	return &domain.Request{
		ID:                 id,
		Borrower:           borrower,
		AmountRequested:    money.Units(1000, 6),
		RequiredCollateral: money.MustParse("750000000000000000"),
		ActualCollateral:   money.Units(1, 18),
		Duration:           30 * 24 * 3600,
		InterestRate:       1000,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestRequest_CreateAndGet(t *testing.T) {
	db := sqlitedb.Open(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	in := makeRequest(1, borrowerA, domain.RequestPending)
	if err := repo.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Borrower != borrowerA || got.Status != domain.RequestPending {
		t.Fatalf("unexpected request: %+v", got)
	}
	// 256-bit amounts survive the round trip exactly
	if got.RequiredCollateral.String() != "750000000000000000" || got.ActualCollateral.String() != "1000000000000000000" {
		t.Fatalf("amounts lost precision: %+v", got)
	}

	locked, err := repo.GetByIDForUpdate(ctx, 1)
	if err != nil || locked.ID != 1 {
		t.Fatalf("GetByIDForUpdate: %+v, %v", locked, err)
	}
}

func TestRequest_NotFound(t *testing.T) {
	repo := NewRequestRepository(sqlitedb.Open(t))
	if _, err := repo.GetByID(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByIDForUpdate(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequest_SaveUpdates(t *testing.T) {
	db := sqlitedb.Open(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	r := makeRequest(1, borrowerA, domain.RequestPending)
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r.Status = domain.RequestCancelled
	r.ActualCollateral = money.Zero()
	if err := repo.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := repo.GetByID(ctx, 1)
	if got.Status != domain.RequestCancelled || !got.ActualCollateral.IsZero() {
		t.Fatalf("Save not persisted: %+v", got)
	}
}

func TestRequest_PendingPagination(t *testing.T) {
	db := sqlitedb.Open(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	statuses := []domain.RequestStatus{
		domain.RequestPending, domain.RequestFunded, domain.RequestPending,
		domain.RequestCancelled, domain.RequestPending, domain.RequestPending,
	}
	for i, s := range statuses {
		if err := repo.Create(ctx, makeRequest(uint64(i+1), borrowerA, s)); err != nil {
			t.Fatalf("seed %d: %v", i+1, err)
		}
	}

	all, err := repo.ListPending(ctx, 0, -1)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(all) != 4 || all[0] != 1 || all[1] != 3 || all[2] != 5 || all[3] != 6 {
		t.Fatalf("pending ids = %v", all)
	}

	page, _ := repo.ListPending(ctx, 1, 2)
	if len(page) != 2 || page[0] != 3 || page[1] != 5 {
		t.Fatalf("page = %v", page)
	}

	n, err := repo.CountPending(ctx)
	if err != nil || n != int64(len(all)) {
		t.Fatalf("CountPending = %d, %v", n, err)
	}
}

func TestRequest_ListByBorrower(t *testing.T) {
	db := sqlitedb.Open(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	_ = repo.Create(ctx, makeRequest(1, borrowerA, domain.RequestPending))
	_ = repo.Create(ctx, makeRequest(2, borrowerB, domain.RequestPending))
	_ = repo.Create(ctx, makeRequest(3, borrowerA, domain.RequestFunded))

	ids, err := repo.ListByBorrower(ctx, borrowerA)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("ListByBorrower = %v, %v", ids, err)
	}
}

func TestLoan_CreateGetList(t *testing.T) {
	db := sqlitedb.Open(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	l := &domain.Loan{
		RequestID: 4,
		Borrower:  borrowerA,
		Lender:    lenderA,
		FundedAt:  now,
		DueDate:   now.Add(30 * 24 * time.Hour),
		Principal: money.Units(1000, 6),
		Interest:  money.New(8_219_178),
		TotalDue:  money.New(1_008_219_178),
		Status:    domain.StatusActive,
	}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByRequestIDForUpdate(ctx, 4)
	if err != nil {
		t.Fatalf("GetByRequestIDForUpdate: %v", err)
	}
	if got.Lender != lenderA || got.TotalDue.String() != "1008219178" || !got.DueDate.Equal(l.DueDate) {
		t.Fatalf("unexpected loan: %+v", got)
	}

	got.Status = domain.StatusRepaid
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, _ := repo.GetByRequestID(ctx, 4)
	if again.Status != domain.StatusRepaid {
		t.Fatalf("status = %s", again.Status)
	}

	ids, _ := repo.ListByLender(ctx, lenderA)
	if len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("ListByLender = %v", ids)
	}
	if _, err := repo.GetByRequestID(ctx, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Package sqlitedb opens an in-memory sqlite database carrying a
// sqlite-safe copy of the ledger schema: no ENUMs, and amounts as TEXT
// because sqlite's NUMERIC affinity would round 78-digit decimals.
package sqlitedb

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stateSQLite struct {
	ID                  uint8  `gorm:"primaryKey;autoIncrement:false;column:id"`
	NextRequestID       uint64 `gorm:"column:next_request_id"`
	TotalActiveRequests uint64 `gorm:"column:total_active_requests"`
	TotalActiveLoans    uint64 `gorm:"column:total_active_loans"`
	TotalVolume         string `gorm:"type:text;column:total_volume"`
	Treasury            []byte `gorm:"type:blob;column:treasury"`
	UpdatedAt           time.Time
}

func (stateSQLite) TableName() string { return "protocol_state" }

type eventSQLite struct {
	ID        string `gorm:"primaryKey;column:id"`
	Name      string `gorm:"type:text;column:name"`
	RequestID uint64 `gorm:"column:request_id"`
	Account   []byte `gorm:"type:blob;column:account"`
	Payload   string `gorm:"type:text;column:payload"`
	CreatedAt time.Time
}

func (eventSQLite) TableName() string { return "ledger_events" }

type requestSQLite struct {
	ID                        uint64 `gorm:"primaryKey;autoIncrement:false;column:id"`
	Borrower                  []byte `gorm:"type:blob;column:borrower"`
	AmountRequested           string `gorm:"type:text;column:amount_requested"`
	RequiredCollateral        string `gorm:"type:text;column:required_collateral"`
	ActualCollateralDeposited string `gorm:"type:text;column:actual_collateral_deposited"`
	Duration                  uint64 `gorm:"column:duration"`
	InterestRate              uint64 `gorm:"column:interest_rate"`
	Status                    string `gorm:"type:text;column:status"` // ← no enum
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (requestSQLite) TableName() string { return "loan_requests" }

type loanSQLite struct {
	RequestID       uint64 `gorm:"primaryKey;autoIncrement:false;column:request_id"`
	Borrower        []byte `gorm:"type:blob;column:borrower"`
	Lender          []byte `gorm:"type:blob;column:lender"`
	FundedAt        time.Time
	DueDate         time.Time
	PrincipalAmount string `gorm:"type:text;column:principal_amount"`
	InterestAmount  string `gorm:"type:text;column:interest_amount"`
	TotalAmountDue  string `gorm:"type:text;column:total_amount_due"`
	Status          string `gorm:"type:text;column:status"`
	UpdatedAt       time.Time
}

func (loanSQLite) TableName() string { return "active_loans" }

type balanceSQLite struct {
	Asset     string `gorm:"primaryKey;column:asset"`
	Account   []byte `gorm:"primaryKey;type:blob;column:account"`
	Amount    string `gorm:"type:text;column:amount"`
	UpdatedAt time.Time
}

func (balanceSQLite) TableName() string { return "asset_balances" }

type transferSQLite struct {
	ID          string `gorm:"primaryKey;column:id"`
	Asset       string `gorm:"column:asset"`
	FromAccount []byte `gorm:"type:blob;column:from_account"`
	ToAccount   []byte `gorm:"type:blob;column:to_account"`
	Amount      string `gorm:"type:text;column:amount"`
	Memo        string `gorm:"column:memo"`
	CreatedAt   time.Time
}

func (transferSQLite) TableName() string { return "asset_transfers" }

type pendingSQLite struct {
	Account   []byte `gorm:"primaryKey;type:blob;column:account"`
	Amount    string `gorm:"type:text;column:amount"`
	UpdatedAt time.Time
}

func (pendingSQLite) TableName() string { return "pending_rewards" }

type supplySQLite struct {
	Symbol      string `gorm:"primaryKey;column:symbol"`
	TotalSupply string `gorm:"type:text;column:total_supply"`
	MaxSupply   string `gorm:"type:text;column:max_supply"`
	UpdatedAt   time.Time
}

func (supplySQLite) TableName() string { return "token_supplies" }

type minterSQLite struct {
	Symbol    string `gorm:"primaryKey;column:symbol"`
	Account   []byte `gorm:"primaryKey;type:blob;column:account"`
	CreatedAt time.Time
}

func (minterSQLite) TableName() string { return "token_minters" }

// Open creates an in-memory sqlite DB and migrates ONLY the sqlite-safe schema.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every pooled connection would get its own :memory: database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&stateSQLite{}, &eventSQLite{}, &requestSQLite{}, &loanSQLite{},
		&balanceSQLite{}, &transferSQLite{}, &pendingSQLite{}, &supplySQLite{}, &minterSQLite{},
	); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one account at one institution. The natural key is
// (Type, Institution, Number); ID is the surrogate key every other entity
// references.
type Account struct {
	ID           int64
	Type         AccountType
	Institution  Institution
	Number       string
	Name         string
	CardUniqueID string
	CreatedAt    time.Time
	LastSyncedAt time.Time
	Active       bool
}

// Balance is a point-in-time snapshot of an account's monetary state.
// At most one snapshot exists per account per day; re-syncs overwrite in
// place rather than appending.
type Balance struct {
	ID            int64
	AccountID     int64
	Date          time.Time
	Total         decimal.Decimal
	Available     decimal.NullDecimal
	Used          decimal.NullDecimal
	Blocked       decimal.NullDecimal
	ProfitLoss    decimal.NullDecimal
	ProfitLossPct decimal.NullDecimal
	Currency      Currency
}

// Transaction is one financial movement on an account.
//
// Identity is the dedup key (AccountID, ExternalID, Date, Description,
// Amount). Sources inconsistently supply external ids, so the compound key is
// what prevents both false duplicates and false merges; an absent external id
// is stored as the empty string. Identity fields are immutable once written.
//
// The three category tiers are: RawCategory (verbatim from the source, set at
// insert and never touched again), Category (derived from the mapping tables
// by a maintenance pass), and UserCategory (manual override). Sync never
// writes to Category or UserCategory.
type Transaction struct {
	ID            int64
	AccountID     int64
	ExternalID    string
	Date          time.Time
	ProcessedDate time.Time // zero when the source did not supply one
	Description   string
	Amount        decimal.Decimal
	Currency      Currency
	ChargedAmount decimal.NullDecimal
	ChargedCcy    Currency
	Type          TransactionType
	Status        TransactionStatus
	RawCategory   string
	Category      string
	UserCategory  string
	Memo          string
	InstallmentNo int
	Installments  int
}

// SyncHistory is the audit record of one orchestrated sync run for one
// (sync type, institution) pair. Per-account outcomes are serialized into
// Details. The row is created in_progress before any data write and
// finalized exactly once; a failed run keeps its history row even though its
// data writes are rolled back.
type SyncHistory struct {
	ID             int64
	SyncType       SyncType
	Institution    Institution
	Status         SyncStatus
	StartedAt      time.Time
	CompletedAt    time.Time // zero while in progress
	RecordsAdded   int
	RecordsUpdated int
	ErrorMessage   string
	Details        string
}

// Package models provides the data structures used throughout the application.
package models

import "time"

// AccountType identifies the kind of financial account.
type AccountType string

const (
	AccountTypeBroker     AccountType = "broker"
	AccountTypePension    AccountType = "pension"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeSavings    AccountType = "savings"
)

// Institution identifies a supported data source. Adding an institution means
// adding a constant here plus one source variant in internal/source.
type Institution string

const (
	InstitutionCal      Institution = "cal"
	InstitutionMax      Institution = "max"
	InstitutionIsracard Institution = "isracard"
	InstitutionMeitav   Institution = "meitav"
	InstitutionMenora   Institution = "menora"
)

// Valid reports whether the institution is one of the supported set.
func (i Institution) Valid() bool {
	switch i {
	case InstitutionCal, InstitutionMax, InstitutionIsracard, InstitutionMeitav, InstitutionMenora:
		return true
	}
	return false
}

// SyncType groups institutions by the kind of data they expose.
type SyncType string

const (
	SyncTypeBroker     SyncType = "broker"
	SyncTypePension    SyncType = "pension"
	SyncTypeCreditCard SyncType = "credit_card"
)

// AccountTypeFor maps a sync type to the account type it produces.
func (s SyncType) AccountType() AccountType {
	switch s {
	case SyncTypeBroker:
		return AccountTypeBroker
	case SyncTypePension:
		return AccountTypePension
	case SyncTypeCreditCard:
		return AccountTypeCreditCard
	}
	return AccountType(s)
}

// Currency is an ISO 4217 currency code from the closed set the aggregator
// understands. Unrecognized codes are rejected at normalization time.
type Currency string

const (
	CurrencyILS Currency = "ILS"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"

	// DefaultCurrency is assumed when a source omits the currency.
	DefaultCurrency = CurrencyILS
)

// Valid reports whether the currency code is in the supported set.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyILS, CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}

// TransactionType describes how a transaction was charged.
type TransactionType string

const (
	TxnTypeNormal       TransactionType = "normal"
	TxnTypeInstallments TransactionType = "installments"
	TxnTypeCredit       TransactionType = "credit"
	TxnTypeDebit        TransactionType = "debit"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TxnStatusPending   TransactionStatus = "pending"
	TxnStatusCompleted TransactionStatus = "completed"
)

// SyncStatus is the lifecycle state of a sync history record.
// Transitions are in_progress -> success or in_progress -> failed, terminal
// once set.
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

// DateLayout is the day-granularity layout used for all persisted dates.
const DateLayout = "2006-01-02"

// DateRange is a half-open-ended fetch window, inclusive on both days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastDays returns a range covering the last n days up to today.
func LastDays(n int) DateRange {
	now := time.Now()
	return DateRange{From: now.AddDate(0, 0, -n), To: now}
}

// Contains reports whether d falls within the range at day granularity.
func (r DateRange) Contains(d time.Time) bool {
	day := d.Format(DateLayout)
	return day >= r.From.Format(DateLayout) && day <= r.To.Format(DateLayout)
}

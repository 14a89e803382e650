// Package normalize converts raw institution records into canonical models.
//
// Everything here is a pure function: malformed data is rejected with a
// ValidationError at this boundary so the dedup engine can assume
// well-formed input.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dlev/finsync/internal/dateutils"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/syncerror"
)

// timeNow is swapped out by tests that pin "today".
var timeNow = time.Now

// Transaction converts a raw transaction into the canonical shape. The
// returned transaction has no account id; the caller attaches the resolved
// identity. Date, description and amount are required.
func Transaction(raw models.RawTransaction) (models.Transaction, error) {
	var txn models.Transaction

	date, err := dateutils.ParseDate(raw.Date)
	if err != nil {
		return txn, &syncerror.ValidationError{Field: "date", Value: raw.Date, Reason: err.Error()}
	}
	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		return txn, &syncerror.ValidationError{Field: "description", Reason: "required"}
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return txn, &syncerror.ValidationError{Field: "amount", Value: raw.Amount, Reason: err.Error()}
	}
	currency, err := parseCurrency(raw.Currency)
	if err != nil {
		return txn, &syncerror.ValidationError{Field: "currency", Value: raw.Currency, Reason: err.Error()}
	}

	txn = models.Transaction{
		ExternalID:  strings.TrimSpace(raw.ExternalID),
		Date:        date,
		Description: desc,
		Amount:      amount,
		Currency:    currency,
		Type:        parseTxnType(raw.Type),
		Status:      parseTxnStatus(raw.Status),
		RawCategory: strings.TrimSpace(raw.Category),
		Memo:        strings.TrimSpace(raw.Memo),
	}

	if raw.ProcessedDate != "" {
		processed, err := dateutils.ParseDate(raw.ProcessedDate)
		if err != nil {
			return models.Transaction{}, &syncerror.ValidationError{Field: "processed_date", Value: raw.ProcessedDate, Reason: err.Error()}
		}
		txn.ProcessedDate = processed
	}
	if raw.ChargedAmount != "" {
		charged, err := ParseAmount(raw.ChargedAmount)
		if err != nil {
			return models.Transaction{}, &syncerror.ValidationError{Field: "charged_amount", Value: raw.ChargedAmount, Reason: err.Error()}
		}
		txn.ChargedAmount = decimal.NewNullDecimal(charged)
		ccy, err := parseCurrency(raw.ChargedCcy)
		if err != nil {
			return models.Transaction{}, &syncerror.ValidationError{Field: "charged_currency", Value: raw.ChargedCcy, Reason: err.Error()}
		}
		txn.ChargedCcy = ccy
	}
	txn.InstallmentNo = parseIntDefault(raw.InstallmentNo, 0)
	txn.Installments = parseIntDefault(raw.Installments, 0)
	return txn, nil
}

// Balance converts a raw balance snapshot into the canonical shape. The total
// amount is required; a missing date means "today".
func Balance(raw models.RawBalance) (models.Balance, error) {
	var bal models.Balance

	if strings.TrimSpace(raw.Total) == "" {
		return bal, &syncerror.ValidationError{Field: "total", Reason: "required"}
	}
	total, err := ParseAmount(raw.Total)
	if err != nil {
		return bal, &syncerror.ValidationError{Field: "total", Value: raw.Total, Reason: err.Error()}
	}
	currency, err := parseCurrency(raw.Currency)
	if err != nil {
		return bal, &syncerror.ValidationError{Field: "currency", Value: raw.Currency, Reason: err.Error()}
	}

	bal = models.Balance{Total: total, Currency: currency}
	if raw.Date == "" {
		bal.Date = dateutils.Day(timeNow())
	} else {
		date, err := dateutils.ParseDate(raw.Date)
		if err != nil {
			return models.Balance{}, &syncerror.ValidationError{Field: "date", Value: raw.Date, Reason: err.Error()}
		}
		bal.Date = date
	}

	for _, f := range []struct {
		name  string
		value string
		dst   *decimal.NullDecimal
	}{
		{"available", raw.Available, &bal.Available},
		{"used", raw.Used, &bal.Used},
		{"blocked", raw.Blocked, &bal.Blocked},
		{"profit_loss", raw.ProfitLoss, &bal.ProfitLoss},
		{"profit_loss_pct", raw.ProfitLossPct, &bal.ProfitLossPct},
	} {
		if f.value == "" {
			continue
		}
		d, err := ParseAmount(f.value)
		if err != nil {
			return models.Balance{}, &syncerror.ValidationError{Field: f.name, Value: f.value, Reason: err.Error()}
		}
		*f.dst = decimal.NewNullDecimal(d)
	}
	return bal, nil
}

// ParseAmount parses a monetary string into a decimal, tolerating currency
// symbols, thousand separators and comma decimal points.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	for _, junk := range []string{"₪", "$", "€", "£", "ILS", "USD", "EUR", "GBP", " ", "'"} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	// A comma is a decimal separator only when no dot is present.
	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return decimal.NewFromString(cleaned)
}

func parseCurrency(s string) (models.Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "":
		return models.DefaultCurrency, nil
	case "₪", "NIS":
		return models.CurrencyILS, nil
	case "$":
		return models.CurrencyUSD, nil
	case "€":
		return models.CurrencyEUR, nil
	}
	c := models.Currency(s)
	if !c.Valid() {
		return "", &syncerror.ValidationError{Field: "currency", Value: s, Reason: "unsupported currency code"}
	}
	return c, nil
}

func parseTxnType(s string) models.TransactionType {
	switch models.TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case models.TxnTypeInstallments:
		return models.TxnTypeInstallments
	case models.TxnTypeCredit:
		return models.TxnTypeCredit
	case models.TxnTypeDebit:
		return models.TxnTypeDebit
	default:
		return models.TxnTypeNormal
	}
}

func parseTxnStatus(s string) models.TransactionStatus {
	if models.TransactionStatus(strings.ToLower(strings.TrimSpace(s))) == models.TxnStatusPending {
		return models.TxnStatusPending
	}
	return models.TxnStatusCompleted
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

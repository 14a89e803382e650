package models

// RawAccount is the institution-specific shape a source collaborator returns
// for one discovered account, before normalization. Every field is a string
// exactly as the source produced it; the normalizer owns all coercion.
type RawAccount struct {
	AccountNumber string           `json:"account_number" csv:"-"`
	Name          string           `json:"name" csv:"-"`
	CardUniqueID  string           `json:"card_unique_id" csv:"-"`
	Balance       *RawBalance      `json:"balance,omitempty" csv:"-"`
	Transactions  []RawTransaction `json:"transactions,omitempty" csv:"-"`
}

// RawBalance is an unnormalized balance snapshot.
type RawBalance struct {
	Date          string `json:"date"`
	Total         string `json:"total"`
	Available     string `json:"available,omitempty"`
	Used          string `json:"used,omitempty"`
	Blocked       string `json:"blocked,omitempty"`
	ProfitLoss    string `json:"profit_loss,omitempty"`
	ProfitLossPct string `json:"profit_loss_pct,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// RawTransaction is an unnormalized transaction record. The csv tags match
// the column layout of card-statement export files.
type RawTransaction struct {
	ExternalID    string `json:"external_id,omitempty" csv:"ExternalID"`
	Date          string `json:"date" csv:"Date"`
	ProcessedDate string `json:"processed_date,omitempty" csv:"ProcessedDate"`
	Description   string `json:"description" csv:"Description"`
	Amount        string `json:"amount" csv:"Amount"`
	Currency      string `json:"currency,omitempty" csv:"Currency"`
	ChargedAmount string `json:"charged_amount,omitempty" csv:"ChargedAmount"`
	ChargedCcy    string `json:"charged_currency,omitempty" csv:"ChargedCurrency"`
	Type          string `json:"type,omitempty" csv:"Type"`
	Status        string `json:"status,omitempty" csv:"Status"`
	Category      string `json:"category,omitempty" csv:"Category"`
	Memo          string `json:"memo,omitempty" csv:"Memo"`
	InstallmentNo string `json:"installment_no,omitempty" csv:"InstallmentNo"`
	Installments  string `json:"installments,omitempty" csv:"Installments"`
}

package ledger

// The uniqueness constraints below are load-bearing: the account natural key,
// the one-balance-per-day rule and the transaction dedup key are all enforced
// here, not only in application code.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	account_type   TEXT NOT NULL,
	institution    TEXT NOT NULL,
	account_number TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	card_unique_id TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	last_synced_at TEXT NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 1,
	UNIQUE (account_type, institution, account_number)
);

CREATE TABLE IF NOT EXISTS balances (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id      INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	balance_date    TEXT NOT NULL,
	total           TEXT NOT NULL,
	available       TEXT,
	used            TEXT,
	blocked         TEXT,
	profit_loss     TEXT,
	profit_loss_pct TEXT,
	currency        TEXT NOT NULL DEFAULT 'ILS',
	UNIQUE (account_id, balance_date)
);

CREATE TABLE IF NOT EXISTS transactions (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id         INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	external_id        TEXT NOT NULL DEFAULT '',
	txn_date           TEXT NOT NULL,
	processed_date     TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL,
	amount             TEXT NOT NULL,
	currency           TEXT NOT NULL DEFAULT 'ILS',
	charged_amount     TEXT,
	charged_currency   TEXT NOT NULL DEFAULT '',
	txn_type           TEXT NOT NULL DEFAULT 'normal',
	status             TEXT NOT NULL DEFAULT 'completed',
	raw_category       TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	user_category      TEXT NOT NULL DEFAULT '',
	memo               TEXT NOT NULL DEFAULT '',
	installment_no     INTEGER NOT NULL DEFAULT 0,
	installments       INTEGER NOT NULL DEFAULT 0,
	UNIQUE (account_id, external_id, txn_date, description, amount)
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions (txn_date);

CREATE TABLE IF NOT EXISTS sync_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_type       TEXT NOT NULL,
	institution     TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'in_progress',
	started_at      TEXT NOT NULL,
	completed_at    TEXT NOT NULL DEFAULT '',
	records_added   INTEGER NOT NULL DEFAULT 0,
	records_updated INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	details         TEXT NOT NULL DEFAULT ''
);
`

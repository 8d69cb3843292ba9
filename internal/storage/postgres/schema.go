package postgres

import (
	"context"
	"fmt"
)

// Constraint names the store inspects when translating unique violations.
const (
	constraintIdempotencyKey = "idempotency_keys_pkey"
)

// Schema defines the ledger tables. Every statement is idempotent so it can
// run on each start-up.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          UUID PRIMARY KEY,
    reference   TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('INSTITUTION', 'PERSON')),
    created_by  TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    CONSTRAINT accounts_reference_key UNIQUE (reference)
);

CREATE TABLE IF NOT EXISTS sub_accounts (
    id          UUID PRIMARY KEY,
    account_id  UUID NOT NULL REFERENCES accounts (id),
    reference   TEXT NOT NULL,
    created_by  TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    CONSTRAINT sub_accounts_account_id_reference_key UNIQUE (account_id, reference)
);

CREATE TABLE IF NOT EXISTS transactions (
    id           UUID PRIMARY KEY,
    reference    TEXT NOT NULL,
    description  TEXT NOT NULL,
    timestamp    TIMESTAMPTZ NOT NULL,
    amount       BIGINT NOT NULL CHECK (amount >= 0),
    created_by   TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    CONSTRAINT transactions_reference_key UNIQUE (reference)
);

CREATE TABLE IF NOT EXISTS postings (
    id              UUID PRIMARY KEY,
    type            TEXT NOT NULL CHECK (type IN ('CR', 'DR')),
    amount          BIGINT NOT NULL CHECK (amount > 0),
    sub_account_id  UUID NOT NULL REFERENCES sub_accounts (id),
    transaction_id  UUID NOT NULL REFERENCES transactions (id),
    created_by      TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    seq             BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_postings_sub_account ON postings (sub_account_id);
CREATE INDEX IF NOT EXISTS idx_postings_transaction ON postings (transaction_id);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    id              UUID NOT NULL,
    transaction_id  UUID NOT NULL REFERENCES transactions (id),
    CONSTRAINT idempotency_keys_pkey PRIMARY KEY (id),
    CONSTRAINT idempotency_keys_transaction_id_key UNIQUE (transaction_id)
);

CREATE TABLE IF NOT EXISTS statement_balances (
    id                 UUID PRIMARY KEY,
    sub_account_id     UUID NOT NULL REFERENCES sub_accounts (id),
    amount             BIGINT NOT NULL,
    balance_date_time  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_statement_balances_sub_account_time
    ON statement_balances (sub_account_id, balance_date_time DESC);
`

// InitializeSchema creates all tables and indexes that do not exist yet.
func (p *PostgresLedgerStore) InitializeSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

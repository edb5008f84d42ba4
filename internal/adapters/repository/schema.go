package repository

// postgresSchema is applied on open. Every statement is idempotent.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS entities (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL CHECK (type IN ('FEATURED_APP', 'VALIDATOR')),
    name        TEXT NOT NULL,
    description TEXT,
    logo_url    TEXT,
    website     TEXT,
    party_id    TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaigns (
    id         TEXT PRIMARY KEY,
    entity_id  TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_entity ON campaigns(entity_id);

CREATE TABLE IF NOT EXISTS backings (
    id          TEXT PRIMARY KEY,
    entity_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    campaign_id TEXT REFERENCES campaigns(id) ON DELETE SET NULL,
    user_id     TEXT NOT NULL,
    party_id    TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL DEFAULT '0',
    status      TEXT NOT NULL,
    ledger_ref  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_backings_entity_status ON backings(entity_id, status);
`

// sqliteSchema mirrors postgresSchema for local development.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entities (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL CHECK (type IN ('FEATURED_APP', 'VALIDATOR')),
    name        TEXT NOT NULL,
    description TEXT,
    logo_url    TEXT,
    website     TEXT,
    party_id    TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS campaigns (
    id         TEXT PRIMARY KEY,
    entity_id  TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_campaigns_entity ON campaigns(entity_id);

CREATE TABLE IF NOT EXISTS backings (
    id          TEXT PRIMARY KEY,
    entity_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    campaign_id TEXT REFERENCES campaigns(id) ON DELETE SET NULL,
    user_id     TEXT NOT NULL,
    party_id    TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL DEFAULT '0',
    status      TEXT NOT NULL,
    ledger_ref  TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backings_entity_status ON backings(entity_id, status);
`

package storage

// The relational schema of the metadata store. Safe to execute multiple
// times; every statement uses IF NOT EXISTS.
//
// Authority split: the chain tail is the only writer of status='active',
// group_id, activation_tx and of poll_vote rows. The API writes drafts,
// rosters and metadata. The uniqueness of poll_vote.nullifier_hash is what
// makes event replay idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS poll (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    options        TEXT NOT NULL,
    start_time     INTEGER NOT NULL,
    end_time       INTEGER NOT NULL,
    status         TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active')),
    group_id       TEXT NOT NULL DEFAULT '0',
    created_by     TEXT NOT NULL,
    activation_tx  TEXT NOT NULL DEFAULT '',
    roster         TEXT NOT NULL DEFAULT '[]',
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_status ON poll(status);
CREATE INDEX IF NOT EXISTS idx_poll_created_by ON poll(created_by);

CREATE TABLE IF NOT EXISTS poll_vote (
    nullifier_hash TEXT PRIMARY KEY,
    poll_id        TEXT NOT NULL,
    option_index   INTEGER NOT NULL,
    block_number   INTEGER NOT NULL,
    tx_hash        TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_vote_poll_id ON poll_vote(poll_id);

CREATE TABLE IF NOT EXISTS user (
    address    TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Singleton row holding the inclusive upper bound of blocks whose events
-- have been durably applied.
CREATE TABLE IF NOT EXISTS tail_cursor (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    last_block INTEGER NOT NULL
);

-- Soft creator bindings recorded when a PollCreated event arrives before
-- (or without) a matching draft.
CREATE TABLE IF NOT EXISTS creator_binding (
    poll_id      TEXT PRIMARY KEY,
    creator      TEXT NOT NULL,
    tx_hash      TEXT NOT NULL,
    block_number INTEGER NOT NULL,
    created_at   INTEGER NOT NULL
);

-- Cooperative lease making the chain tail a single-instance writer.
CREATE TABLE IF NOT EXISTS tail_lease (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    holder     TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
`

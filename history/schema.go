package history

// Schema contains the complete DDL for the history tables.
const Schema = `
-- One row per analyzed snapshot
CREATE TABLE IF NOT EXISTS snapshots (
    date              TEXT PRIMARY KEY,
    recorded_at       INTEGER NOT NULL,
    total_countries   INTEGER NOT NULL,
    total_fields      INTEGER NOT NULL,
    universal_count   INTEGER NOT NULL DEFAULT 0,
    common_count      INTEGER NOT NULL DEFAULT 0,
    rare_count        INTEGER NOT NULL DEFAULT 0,
    multi_valued_pct  REAL NOT NULL DEFAULT 0
);

-- Per-field coverage, one row per field per snapshot
CREATE TABLE IF NOT EXISTS field_coverage (
    snapshot_date     TEXT NOT NULL,
    database_id       INTEGER NOT NULL,
    category          TEXT NOT NULL DEFAULT '',
    name              TEXT NOT NULL DEFAULT '',
    display_name      TEXT NOT NULL,
    countries_present INTEGER NOT NULL,
    coverage_ratio    REAL NOT NULL,
    band              TEXT NOT NULL,
    PRIMARY KEY (snapshot_date, database_id, category, name),
    FOREIGN KEY (snapshot_date) REFERENCES snapshots(date) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_coverage_field ON field_coverage(database_id, category, name);
CREATE INDEX IF NOT EXISTS idx_coverage_band ON field_coverage(snapshot_date, band);
`

package postgres

// Placeholder for a Postgres backed ResultIndex implementation.
//
// Intent: provide a shared index for teams running sweeps from multiple
// hosts, implementing the core.ResultIndex interface on top of a single
// table keyed by canonical key. This file intentionally remains a stub so
// that downstream contributors can supply connection wiring without pulling
// a database driver into minimal builds. If you implement this, keep the
// dependency surface narrow and make the configuration (DSN, table name,
// advisory locking for Persist) explicit via a small Config struct.

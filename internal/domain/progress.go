package domain

// SyncProgress tracks how far a chain follower has recorded.
// Corresponds to the sync_progress table in PostgreSQL.
type SyncProgress struct {
	Source    string // follower identifier
	LastBlock uint64 // highest fully recorded block
	UpdatedAt int64  // last update (ms)
}

package docstore

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithDataDir sets the on-disk directory for the database. An empty
// directory selects in-memory mode.
func WithDataDir(dir string) Option {
	return func(s *Store) {
		s.dataDir = dir
	}
}

// WithInMemory forces Badger's in-memory mode regardless of data directory.
func WithInMemory() Option {
	return func(s *Store) {
		s.inMemory = true
	}
}

// WithMaxConflictRetries bounds how often a conditional update is retried
// after an optimistic transaction conflict before reporting the store as
// unavailable.
func WithMaxConflictRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

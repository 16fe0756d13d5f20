package badger

import "github.com/poiesic/bulkload/storage"

// NewMemoryStores creates an in-memory journal and run repository for testing.
// Caller must close the backend when done.
func NewMemoryStores() (storage.FailureJournal, storage.RunRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	return NewFailureJournal(backend), NewRunRepository(backend), backend, nil
}

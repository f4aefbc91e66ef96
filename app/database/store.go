package database

// Store is the single persistence entry point used by the task pipeline.
type Store struct {
	*SourceRepository
	*ItemRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		SourceRepository: NewSourceRepository(db),
		ItemRepository:   NewItemRepository(db),
	}
}

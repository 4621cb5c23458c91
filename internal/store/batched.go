package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs. It implements DataStore so the extractor can write to it without
// knowing whether it's hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries are passed through to the underlying Store, which is safe for
// concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	// Buffered extraction data.
	Definitions []Definition
	CallSites   []CallSite

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertDefinition(d *Definition) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Definitions = append(b.Definitions, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertCallSite(c *CallSite) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.CallSites = append(b.CallSites, *c)
	return fakeID, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Definitions) + len(b.CallSites)
}

// DefinitionsByFile returns definitions for a file, merging any buffered
// (not yet committed) definitions with those already in the database.
func (b *BatchedStore) DefinitionsByFile(fileID int64) ([]*Definition, error) {
	dbDefs, err := b.store.DefinitionsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Definitions {
		if b.Definitions[i].FileID == fileID {
			dbDefs = append(dbDefs, &b.Definitions[i])
		}
	}
	return dbDefs, nil
}

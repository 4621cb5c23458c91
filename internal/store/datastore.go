package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	// Extraction inserts; each returns the assigned ID.
	InsertDefinition(d *Definition) (int64, error)
	InsertCallSite(c *CallSite) (int64, error)

	// Queries needed for lookups during extraction.
	DefinitionsByFile(fileID int64) ([]*Definition, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)

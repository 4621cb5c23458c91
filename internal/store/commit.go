package store

import (
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and all FK references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Definitions (depend on file_id only, which is already real)
//  2. CallSites (depend on file_id, definition_id, parent_id)
//
// Call sites are buffered parent-first, so a parent's real ID is always
// known before its children are inserted.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	defStmt, err := tx.Prepare(insertDefinitionSQL)
	if err != nil {
		return fmt.Errorf("commit batch: prepare definitions: %w", err)
	}
	defer defStmt.Close()
	callStmt, err := tx.Prepare(insertCallSiteSQL)
	if err != nil {
		return fmt.Errorf("commit batch: prepare call sites: %w", err)
	}
	defer callStmt.Close()

	fakeToReal := make(map[int64]int64)

	// 1. Definitions
	for _, d := range batch.Definitions {
		res, err := defStmt.Exec(d.FileID, d.Name, d.Kind, d.StartOffset, d.EndOffset,
			d.StartLine, d.StartCol, d.EndLine, d.EndCol)
		if err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", d.Name, err)
		}
		realID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	// 2. CallSites
	for _, c := range batch.CallSites {
		if c.DefinitionID != nil && *c.DefinitionID < 0 {
			realID, ok := fakeToReal[*c.DefinitionID]
			if !ok {
				return fmt.Errorf("commit batch: call site %q has definition_id=%d not in fakeToReal map", c.Callee, *c.DefinitionID)
			}
			c.DefinitionID = &realID
		}
		if c.ParentID != nil && *c.ParentID < 0 {
			realID, ok := fakeToReal[*c.ParentID]
			if !ok {
				return fmt.Errorf("commit batch: call site %q has parent_id=%d not in fakeToReal map", c.Callee, *c.ParentID)
			}
			c.ParentID = &realID
		}
		res, err := callStmt.Exec(c.FileID, c.DefinitionID, c.ParentID, c.Callee,
			c.StartOffset, c.EndOffset, c.StartLine, c.StartCol, c.EndLine, c.EndCol,
			c.Depth, c.Improper, c.Text)
		if err != nil {
			return fmt.Errorf("commit batch: call site %q: %w", c.Callee, err)
		}
		realID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("commit batch: call site %q: %w", c.Callee, err)
		}
		fakeToReal[c.ID] = realID
	}

	return tx.Commit()
}

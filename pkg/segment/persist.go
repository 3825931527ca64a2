package segment

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"learnedkv/pkg/common"
	"learnedkv/pkg/lockmgr"
)

// Store checkpoints the segment index's lower-bound-to-segment mapping
// to a SQLite-backed table, so a process restart can rebuild the index
// without rerunning BulkLoad's model training.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the segment metadata database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS segments (
		lower_key INTEGER PRIMARY KEY,
		segment_id INTEGER NOT NULL,
		overflow INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Checkpoint replaces the persisted segment table with idx's current
// contents, in a single transaction.
func (s *Store) Checkpoint(idx *Index) error {
	entries := idx.All()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM segments"); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO segments (lower_key, segment_id, overflow) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		overflow := 0
		if e.Info.Overflow {
			overflow = 1
		}
		if _, err := stmt.Exec(int64(e.Lower), int64(e.Info.ID), overflow); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Load rebuilds an Index from the persisted segment table, ordered by
// lower_key ascending. The returned index coordinates reorg locks
// through lm.
func (s *Store) Load(lm *lockmgr.Manager) (*Index, error) {
	rows, err := s.db.Query("SELECT lower_key, segment_id, overflow FROM segments ORDER BY lower_key ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lowers []common.Key
	var infos []Info
	for rows.Next() {
		var lower, segID int64
		var overflow int
		if err := rows.Scan(&lower, &segID, &overflow); err != nil {
			return nil, err
		}
		lowers = append(lowers, common.Key(lower))
		infos = append(infos, Info{ID: uint64(segID), Overflow: overflow != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idx := NewIndex(lm)
	idx.Seed(infos, lowers)
	return idx, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

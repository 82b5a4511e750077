package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get when no upload has been recorded for
// the requested filename.
var ErrNotFound = errors.New("upload not recorded")

// keyPrefix namespaces upload records inside the Badger keyspace.
const keyPrefix = "upload:"

// UploadRecord describes one completed upload. Records are keyed by
// filename, so re-uploading a file replaces its record.
type UploadRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	Chunks      int       `json:"chunks"`
	Profile     string    `json:"profile"`
	CompletedAt time.Time `json:"completed_at"`
}

// Registry is a persistent index of completed uploads backed by Badger.
type Registry struct {
	db *badger.DB
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Registry, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %v", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record stores rec, replacing any previous record for the same filename.
func (r *Registry) Record(rec *UploadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal upload record: %v", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.Filename), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store upload record: %v", err)
	}
	return nil
}

// Delete removes the record for filename. Deleting a filename that was
// never recorded is not an error.
func (r *Registry) Delete(filename string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + filename))
	})
	if err != nil {
		return fmt.Errorf("failed to delete upload record: %v", err)
	}
	return nil
}

// Get returns the record for filename, or ErrNotFound.
func (r *Registry) Get(filename string) (*UploadRecord, error) {
	var rec UploadRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + filename))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload record: %v", err)
	}
	return &rec, nil
}

// List returns all recorded uploads in filename order.
func (r *Registry) List() ([]*UploadRecord, error) {
	var records []*UploadRecord
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec UploadRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upload records: %v", err)
	}
	return records, nil
}

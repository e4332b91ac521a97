// Package filetable is a single-file host table on bbolt, for running the
// board without a Lark Base.
package filetable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

var (
	fieldsBucket  = []byte("fields")
	recordsBucket = []byte("records")
)

// Store implements hosttable.Table. Fields are kept in creation order and
// records are keyed by time-ordered ids so listing follows insertion order.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open initializes the bbolt file and seeds schema when the table has no
// fields yet.
func Open(path string, schema []hosttable.Field) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		fields, err := tx.CreateBucketIfNotExists(fieldsBucket)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		if fields.Stats().KeyN > 0 {
			return nil
		}
		for _, f := range schema {
			if err := putField(fields, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func putField(b *bolt.Bucket, f hosttable.Field) error {
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return b.Put([]byte(fmt.Sprintf("%06d_%s", seq, f.ID)), payload)
}

func (s *Store) FieldList(ctx context.Context) ([]hosttable.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var fields []hosttable.Field
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		fields, err = readFields(tx)
		return err
	})
	return fields, err
}

func (s *Store) Field(ctx context.Context, id string) (*hosttable.Field, error) {
	fields, err := s.FieldList(ctx)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", hosttable.ErrFieldNotFound, id)
}

func (s *Store) RecordList(ctx context.Context) ([]hosttable.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []hosttable.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		fields, err := readFields(tx)
		if err != nil {
			return err
		}
		types := fieldTypes(fields)

		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(v, &raw); err != nil {
				return fmt.Errorf("record %s: %w", k, err)
			}
			decoded, err := hosttable.DecodeFields(types, raw)
			if err != nil {
				return fmt.Errorf("record %s: %w", k, err)
			}
			records = append(records, hosttable.Record{ID: string(k), Fields: decoded})
			return nil
		})
	})
	return records, err
}

func (s *Store) AddRecord(ctx context.Context, fields hosttable.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	encoded, err := hosttable.EncodeFields(fields)
	if err != nil {
		return "", err
	}
	id := s.newID()
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := checkFields(tx, encoded); err != nil {
			return err
		}
		return putRecord(tx, id, merge(nil, encoded))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetRecord merges fields into the stored row. JSON null removes a cell.
func (s *Store) SetRecord(ctx context.Context, id string, fields hosttable.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := hosttable.EncodeFields(fields)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		current := tx.Bucket(recordsBucket).Get([]byte(id))
		if current == nil {
			return fmt.Errorf("%w: %s", hosttable.ErrRecordNotFound, id)
		}
		if err := checkFields(tx, encoded); err != nil {
			return err
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(current, &row); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		return putRecord(tx, id, merge(row, encoded))
	})
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", hosttable.ErrRecordNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

// Size returns the number of stored records.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) newID() string {
	return fmt.Sprintf("rec%013d%s", s.now().UnixMilli(), uuid.NewString()[:8])
}

func readFields(tx *bolt.Tx) ([]hosttable.Field, error) {
	var fields []hosttable.Field
	err := tx.Bucket(fieldsBucket).ForEach(func(k, v []byte) error {
		var f hosttable.Field
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		fields = append(fields, f)
		return nil
	})
	return fields, err
}

func fieldTypes(fields []hosttable.Field) map[string]hosttable.FieldType {
	types := make(map[string]hosttable.FieldType, len(fields))
	for _, f := range fields {
		types[f.ID] = f.Type
	}
	return types
}

func checkFields(tx *bolt.Tx, encoded map[string]json.RawMessage) error {
	fields, err := readFields(tx)
	if err != nil {
		return err
	}
	types := fieldTypes(fields)
	for id := range encoded {
		if _, ok := types[id]; !ok {
			return fmt.Errorf("%w: %s", hosttable.ErrFieldNotFound, id)
		}
	}
	return nil
}

func merge(row, encoded map[string]json.RawMessage) map[string]json.RawMessage {
	if row == nil {
		row = make(map[string]json.RawMessage, len(encoded))
	}
	for id, raw := range encoded {
		if string(raw) == "null" {
			delete(row, id)
			continue
		}
		row[id] = raw
	}
	return row
}

func putRecord(tx *bolt.Tx, id string, row map[string]json.RawMessage) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return tx.Bucket(recordsBucket).Put([]byte(id), payload)
}

var _ hosttable.Table = (*Store)(nil)

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository returns a Postgres-backed host table. Records keep their
// cells in one JSONB column keyed by field id.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// SeedSchema inserts the given fields when the table has none yet.
func (r *TableRepository) SeedSchema(ctx context.Context, fields []hosttable.Field) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM host_fields`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	const query = `
	INSERT INTO host_fields (id, name, type, options)
	VALUES ($1, $2, $3, $4::jsonb)
	ON CONFLICT (id) DO NOTHING
	`
	batch := &pgx.Batch{}
	for _, f := range fields {
		batch.Queue(query, f.ID, f.Name, f.Type.String(), string(marshalOptions(f.Options)))
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *TableRepository) FieldList(ctx context.Context) ([]hosttable.Field, error) {
	const query = `
	SELECT id, name, type, options
	FROM host_fields
	ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []hosttable.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

func (r *TableRepository) Field(ctx context.Context, id string) (*hosttable.Field, error) {
	const query = `
	SELECT id, name, type, options
	FROM host_fields
	WHERE id = $1
	`
	return scanField(r.pool.QueryRow(ctx, query, id))
}

func (r *TableRepository) RecordList(ctx context.Context) ([]hosttable.Record, error) {
	fields, err := r.FieldList(ctx)
	if err != nil {
		return nil, err
	}
	types := fieldTypes(fields)

	const query = `
	SELECT id, fields
	FROM host_records
	ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []hosttable.Record
	for rows.Next() {
		var (
			id    string
			cells []byte
		)
		if err := rows.Scan(&id, &cells); err != nil {
			return nil, err
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(cells, &raw); err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		decoded, err := hosttable.DecodeFields(types, raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		records = append(records, hosttable.Record{ID: id, Fields: decoded})
	}
	return records, rows.Err()
}

func (r *TableRepository) AddRecord(ctx context.Context, fields hosttable.Fields) (string, error) {
	cells, err := encodeCells(fields)
	if err != nil {
		return "", err
	}
	id := "rec" + uuid.NewString()

	const query = `
	INSERT INTO host_records (id, fields)
	VALUES ($1, jsonb_strip_nulls($2::jsonb))
	`
	if _, err := r.pool.Exec(ctx, query, id, cells); err != nil {
		return "", err
	}
	return id, nil
}

// SetRecord merges cells into the row; JSON null removes a cell.
func (r *TableRepository) SetRecord(ctx context.Context, id string, fields hosttable.Fields) error {
	cells, err := encodeCells(fields)
	if err != nil {
		return err
	}

	const query = `
	UPDATE host_records
	SET fields = jsonb_strip_nulls(fields || $2::jsonb),
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, cells)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", hosttable.ErrRecordNotFound, id)
	}
	return nil
}

func (r *TableRepository) DeleteRecord(ctx context.Context, id string) error {
	const query = `DELETE FROM host_records WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", hosttable.ErrRecordNotFound, id)
	}
	return nil
}

func scanField(row interface {
	Scan(dest ...interface{}) error
}) (*hosttable.Field, error) {
	var (
		f        hosttable.Field
		typeName string
		options  []byte
	)
	if err := row.Scan(&f.ID, &f.Name, &typeName, &options); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, hosttable.ErrFieldNotFound
		}
		return nil, err
	}

	ft, err := hosttable.ParseFieldType(typeName)
	if err != nil {
		return nil, err
	}
	f.Type = ft
	if len(options) > 0 {
		var opts []hosttable.Option
		if err := json.Unmarshal(options, &opts); err != nil {
			return nil, fmt.Errorf("field %s options: %w", f.ID, err)
		}
		if len(opts) > 0 {
			f.Options = opts
		}
	}
	return &f, nil
}

var _ hosttable.Table = (*TableRepository)(nil)

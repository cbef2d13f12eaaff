package ocrchat

import (
	"context"
	"database/sql"
	_ "embed"
	"sync"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// DB is the optional extraction history. It records that an extraction
// happened and how it went, never the image or the extracted text.
type DB struct {
	mu sync.Mutex
	db *sql.DB

	filepath string
}

type Extraction struct {
	Id         int
	SessionId  string
	FileName   string
	FileSize   int
	Width      int
	Height     int
	Backend    string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        sql.NullString // set when the extraction failed
	ResultLen  int
}

// Duration is how long the extraction took, including normalization.
func (e *Extraction) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	// A :memory: database only exists on the connection that created it
	sqldb.SetMaxOpenConns(1)
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.db.Close()
}

// RecordExtraction inserts a row for ex and updates ex.Id.
func (db *DB) RecordExtraction(ctx context.Context, ex *Extraction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.db.ExecContext(ctx, `
		INSERT INTO extractions
		(session_id, file_name, file_size, width, height, backend, model,
		 started_at, finished_at, error, result_len)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		`,
		ex.SessionId, ex.FileName, ex.FileSize, ex.Width, ex.Height,
		ex.Backend, ex.Model, ex.StartedAt, ex.FinishedAt, ex.Err, ex.ResultLen,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ex.Id = int(id)

	return nil
}

// RecentExtractions returns up to n extractions, most recent first.
func (db *DB) RecentExtractions(ctx context.Context, n int) ([]*Extraction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, session_id, file_name, file_size, width, height,
			   backend, model, started_at, finished_at, error, result_len
		FROM extractions
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var extractions []*Extraction
	for rows.Next() {
		ex := &Extraction{}
		err := rows.Scan(
			&ex.Id,
			&ex.SessionId,
			&ex.FileName,
			&ex.FileSize,
			&ex.Width,
			&ex.Height,
			&ex.Backend,
			&ex.Model,
			&ex.StartedAt,
			&ex.FinishedAt,
			&ex.Err,
			&ex.ResultLen,
		)
		if err != nil {
			return nil, err
		}
		extractions = append(extractions, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return extractions, nil
}

// CountExtractions returns the number of recorded extractions, and how many
// of them failed.
func (db *DB) CountExtractions(ctx context.Context) (total, failed int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(error) FROM extractions`)
	err = row.Scan(&total, &failed)
	return total, failed, err
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements storageworker.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ storageworker.Repository = (*Repository)(nil)

// Migrate creates the files table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// handlePostgresError maps driver errors onto storageworker errors
func handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storageworker.ErrFileNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return storageworker.ErrFileExists
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const fileColumns = `key, file_name, content_type, access_role, size, upload_id, status, created_at, updated_at, confirmed_at`

func (r *Repository) CreateFile(ctx context.Context, file *storageworker.FileRecord) error {
	query := `
		INSERT INTO upload_files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		file.Key, file.FileName, file.ContentType, file.AccessRole, file.Size,
		file.UploadID, string(file.Status), file.CreatedAt, file.UpdatedAt, file.ConfirmedAt)
	if err != nil {
		return handlePostgresError("create file", err)
	}
	return nil
}

func (r *Repository) GetFile(ctx context.Context, key string) (*storageworker.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM upload_files WHERE key = $1`

	file, err := scanFile(r.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, handlePostgresError("get file", err)
	}
	return file, nil
}

func (r *Repository) UpdateFile(ctx context.Context, file *storageworker.FileRecord) error {
	query := `
		UPDATE upload_files SET
			file_name = $2, content_type = $3, access_role = $4, size = $5,
			upload_id = $6, status = $7, updated_at = $8, confirmed_at = $9
		WHERE key = $1`

	tag, err := r.db.Exec(ctx, query,
		file.Key, file.FileName, file.ContentType, file.AccessRole, file.Size,
		file.UploadID, string(file.Status), file.UpdatedAt, file.ConfirmedAt)
	if err != nil {
		return handlePostgresError("update file", err)
	}
	if tag.RowsAffected() == 0 {
		return storageworker.ErrFileNotFound
	}
	return nil
}

func (r *Repository) DeleteFile(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM upload_files WHERE key = $1`, key)
	if err != nil {
		return handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return storageworker.ErrFileNotFound
	}
	return nil
}

func (r *Repository) ListUnconfirmed(ctx context.Context, createdBefore time.Time) ([]*storageworker.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM upload_files
		WHERE status <> $1 AND created_at < $2
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, string(storageworker.FileStatusConfirmed), createdBefore)
	if err != nil {
		return nil, handlePostgresError("list unconfirmed", err)
	}
	defer rows.Close()

	var files []*storageworker.FileRecord
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, handlePostgresError("list unconfirmed", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list unconfirmed", err)
	}
	return files, nil
}

func scanFile(row pgx.Row) (*storageworker.FileRecord, error) {
	var file storageworker.FileRecord
	var status string
	err := row.Scan(
		&file.Key, &file.FileName, &file.ContentType, &file.AccessRole, &file.Size,
		&file.UploadID, &status, &file.CreatedAt, &file.UpdatedAt, &file.ConfirmedAt)
	if err != nil {
		return nil, err
	}
	file.Status = storageworker.FileStatus(status)
	return &file, nil
}

package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InstallRecord describes one successful artifact install.
type InstallRecord struct {
	ID          uuid.UUID
	Filename    string
	ContentType string
	SizeBytes   int64
	SHA256Hex   string
	RequestID   string
	InstalledAt time.Time
}

// Recorder keeps a history of installs. The slot itself only ever holds the
// latest artifact.
type Recorder interface {
	RecordInstall(ctx context.Context, rec InstallRecord) error
}

type nopRecorder struct{}

func (nopRecorder) RecordInstall(context.Context, InstallRecord) error { return nil }

// SQLRecorder writes install records to the slot_installs table.
type SQLRecorder struct {
	db *sql.DB
}

func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

func (r *SQLRecorder) RecordInstall(ctx context.Context, rec InstallRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO slot_installs (id, filename, content_type, size_bytes, sha256_hex, request_id, installed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Filename, rec.ContentType, rec.SizeBytes, rec.SHA256Hex, rec.RequestID, rec.InstalledAt)
	if err != nil {
		return fmt.Errorf("insert install record: %w", err)
	}
	return nil
}

// LatestInstall returns the most recent install record, or sql.ErrNoRows.
func (r *SQLRecorder) LatestInstall(ctx context.Context) (InstallRecord, error) {
	var rec InstallRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, filename, content_type, size_bytes, sha256_hex, request_id, installed_at
		FROM slot_installs
		ORDER BY installed_at DESC
		LIMIT 1
	`).Scan(&rec.ID, &rec.Filename, &rec.ContentType, &rec.SizeBytes, &rec.SHA256Hex, &rec.RequestID, &rec.InstalledAt)
	return rec, err
}

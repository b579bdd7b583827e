package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/mission-planner/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// timeLayout is fixed-width so created_at sorts correctly as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Export formats
const (
	FormatQGC = "qgc"
	FormatKML = "kml"
	// FormatUpload marks a waypoint file received through the upload endpoint
	FormatUpload = "upload"
)

// ExportRecord is one mission file produced by the server
type ExportRecord struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Format         string    `json:"format"`
	MissionName    string    `json:"mission_name"`
	CommandCount   int       `json:"command_count"`
	DistanceMeters float64   `json:"distance_meters"`
	TimeSeconds    float64   `json:"time_seconds"`
	Content        string    `json:"content,omitempty"`
}

// ExportStorage keeps the export history of the current session
type ExportStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewExportStorage creates the exports table if needed
func NewExportStorage(db *sql.DB, log *logger.Logger) (*ExportStorage, error) {
	storage := &ExportStorage{
		db:     db,
		logger: log.Named("sqlite-exports"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *ExportStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS mission_exports (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			format TEXT NOT NULL,
			mission_name TEXT,
			command_count INTEGER NOT NULL,
			distance_meters REAL NOT NULL,
			time_seconds REAL NOT NULL,
			content TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create mission_exports table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_exports_created_at ON mission_exports(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}
	return nil
}

// SaveExport stores a record, filling in ID and CreatedAt when empty
func (s *ExportStorage) SaveExport(ctx context.Context, record *ExportRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mission_exports
		(id, created_at, format, mission_name, command_count, distance_meters, time_seconds, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CreatedAt.UTC().Format(timeLayout),
		record.Format,
		record.MissionName,
		record.CommandCount,
		record.DistanceMeters,
		record.TimeSeconds,
		record.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}

	s.logger.Debug("Stored export",
		String("id", record.ID),
		String("format", record.Format))
	return nil
}

// ListExports returns export metadata, newest first, without file content
func (s *ExportStorage) ListExports(ctx context.Context, limit, offset int) ([]*ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, format, mission_name, command_count, distance_meters, time_seconds
		FROM mission_exports
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	records := make([]*ExportRecord, 0)
	for rows.Next() {
		var (
			record    ExportRecord
			createdAt string
			name      sql.NullString
		)
		if err := rows.Scan(
			&record.ID,
			&createdAt,
			&record.Format,
			&name,
			&record.CommandCount,
			&record.DistanceMeters,
			&record.TimeSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		record.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		record.MissionName = name.String
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exports: %w", err)
	}
	return records, nil
}

// GetExport returns one export including its content
func (s *ExportStorage) GetExport(ctx context.Context, id string) (*ExportRecord, error) {
	var (
		record    ExportRecord
		createdAt string
		name      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, format, mission_name, command_count, distance_meters, time_seconds, content
		FROM mission_exports WHERE id = ?`, id,
	).Scan(
		&record.ID,
		&createdAt,
		&record.Format,
		&name,
		&record.CommandCount,
		&record.DistanceMeters,
		&record.TimeSeconds,
		&record.Content,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query export: %w", err)
	}
	record.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.MissionName = name.String
	return &record, nil
}

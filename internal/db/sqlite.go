package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/opshub/backend/internal/models"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteStore is the embedded Repository used for local runs and tests.
// It keeps a single connection, so writes are serialized by the pool.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLiteStore{DB: conn}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.DB.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) ListTechnicians(ctx context.Context, status models.TechnicianStatus) ([]models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += ` WHERE status = ?`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Technician{}
	for rows.Next() {
		t, err := scanSQLiteTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TechnicianAvailable
	}
	now := formatTime(time.Now())
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO technicians (id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+technicianColumns, t.ID, t.Name, string(t.Status), now, now)
	return scanSQLiteTechnician(row)
}

func (s *SQLiteStore) SetTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) (models.Technician, error) {
	row := s.DB.QueryRowContext(ctx, `
		UPDATE technicians SET status = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+technicianColumns, string(status), formatTime(time.Now()), id)
	t, err := scanSQLiteTechnician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Technician{}, ErrNotFound
	}
	return t, err
}

func (s *SQLiteStore) CreateAssignedTicket(ctx context.Context, t models.Ticket) (models.Ticket, models.Technician, error) {
	var (
		created models.Ticket
		tech    models.Technician
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE technicians SET status = 'busy', updated_at = ?
			WHERE id = (
				SELECT id FROM technicians
				WHERE status = 'available'
				ORDER BY name ASC, id ASC
				LIMIT 1
			) AND status = 'available'
			RETURNING `+technicianColumns, formatTime(time.Now()))
		var err error
		tech, err = scanSQLiteTechnician(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoTechnicianAvailable
		}
		if err != nil {
			return fmt.Errorf("claim technician: %w", err)
		}
		t.TechnicianID = &tech.ID
		t.TechnicianName = tech.Name
		created, err = insertSQLiteTicket(ctx, tx, t)
		return err
	})
	if err != nil {
		return models.Ticket{}, models.Technician{}, err
	}
	return created, tech, nil
}

func (s *SQLiteStore) InsertTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	var created models.Ticket
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = insertSQLiteTicket(ctx, tx, t)
		return err
	})
	return created, err
}

func insertSQLiteTicket(ctx context.Context, tx *sql.Tx, t models.Ticket) (models.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO tickets (id, complaint, building, priority, technician_id, technician_name, status, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+ticketColumns,
		t.ID, t.Complaint, t.Building, string(t.Priority), t.TechnicianID, t.TechnicianName, string(t.Status), t.Date, formatTime(t.CreatedAt))
	created, err := scanSQLiteTicket(row)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	return created, nil
}

func (s *SQLiteStore) ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, error) {
	limit, offset := NormalizePage(f.Limit, f.Offset)

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, "status = ?")
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		wheres = append(wheres, "priority = ?")
	}
	if f.Building != "" {
		args = append(args, f.Building)
		wheres = append(wheres, "building = ? COLLATE NOCASE")
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanSQLiteTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, ErrNotFound
	}
	return t, err
}

func (s *SQLiteStore) CloseTicket(ctx context.Context, id string, at time.Time) (models.Ticket, *models.Technician, error) {
	var (
		closed   models.Ticket
		released *models.Technician
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanSQLiteTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current.Status == models.TicketClosed {
			return ErrTicketClosed
		}

		closed, err = scanSQLiteTicket(tx.QueryRowContext(ctx, `
			UPDATE tickets SET status = 'closed', closed_at = ?
			WHERE id = ?
			RETURNING `+ticketColumns, formatTime(at), id))
		if err != nil {
			return err
		}
		if closed.TechnicianID == nil {
			return nil
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE technicians SET status = 'available', updated_at = ?
			WHERE id = ? AND status = 'busy'
			AND NOT EXISTS (SELECT 1 FROM tickets WHERE technician_id = ? AND status = 'open')
			RETURNING `+technicianColumns, formatTime(time.Now()), *closed.TechnicianID, *closed.TechnicianID)
		tech, err := scanSQLiteTechnician(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		released = &tech
		return nil
	})
	if err != nil {
		return models.Ticket{}, nil, err
	}
	return closed, released, nil
}

func scanSQLiteTechnician(row rowScanner) (models.Technician, error) {
	var (
		t                models.Technician
		status           string
		created, updated string
	)
	if err := row.Scan(&t.ID, &t.Name, &status, &created, &updated); err != nil {
		return models.Technician{}, err
	}
	t.Status = models.TechnicianStatus(status)
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return models.Technician{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Technician{}, err
	}
	return t, nil
}

func scanSQLiteTicket(row rowScanner) (models.Ticket, error) {
	var (
		t            models.Ticket
		priority     string
		status       string
		technicianID sql.NullString
		created      string
		closedAt     sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Complaint, &t.Building, &priority, &technicianID, &t.TechnicianName, &status, &t.Date, &created, &closedAt); err != nil {
		return models.Ticket{}, err
	}
	t.Priority = models.Priority(priority)
	t.Status = models.TicketStatus(status)
	if technicianID.Valid {
		id := technicianID.String
		t.TechnicianID = &id
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return models.Ticket{}, err
	}
	if closedAt.Valid {
		ts, err := parseTime(closedAt.String)
		if err != nil {
			return models.Ticket{}, err
		}
		t.ClosedAt = &ts
	}
	return t, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

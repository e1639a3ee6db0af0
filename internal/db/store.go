package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opshub/backend/internal/models"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Store is the Postgres-backed Repository.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const technicianColumns = `id, name, status, created_at, updated_at`

const ticketColumns = `id, complaint, building, priority, technician_id, technician_name, status, date, created_at, closed_at`

func (s *Store) ListTechnicians(ctx context.Context, status models.TechnicianStatus) ([]models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Technician{}
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TechnicianAvailable
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO technicians (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+technicianColumns, t.ID, t.Name, string(t.Status))
	return scanTechnician(row)
}

func (s *Store) SetTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) (models.Technician, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE technicians SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+technicianColumns, string(status), id)
	t, err := scanTechnician(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Technician{}, ErrNotFound
	}
	return t, err
}

func (s *Store) CreateAssignedTicket(ctx context.Context, t models.Ticket) (models.Ticket, models.Technician, error) {
	var (
		created models.Ticket
		tech    models.Technician
	)
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		tech, err = claimTechnician(ctx, tx)
		if err != nil {
			return err
		}
		t.TechnicianID = &tech.ID
		t.TechnicianName = tech.Name
		created, err = insertTicket(ctx, tx, t)
		return err
	})
	if err != nil {
		return models.Ticket{}, models.Technician{}, err
	}
	return created, tech, nil
}

// claimTechnician flips the first available technician to busy. SKIP LOCKED
// lets concurrent claims move on to the next candidate instead of queueing
// behind a row another transaction is about to take.
func claimTechnician(ctx context.Context, tx pgx.Tx) (models.Technician, error) {
	row := tx.QueryRow(ctx, `
		UPDATE technicians SET status = 'busy', updated_at = NOW()
		WHERE id = (
			SELECT id FROM technicians
			WHERE status = 'available'
			ORDER BY name ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'available'
		RETURNING `+technicianColumns)
	tech, err := scanTechnician(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Technician{}, ErrNoTechnicianAvailable
	}
	if err != nil {
		return models.Technician{}, fmt.Errorf("claim technician: %w", err)
	}
	return tech, nil
}

func (s *Store) InsertTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	var created models.Ticket
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = insertTicket(ctx, tx, t)
		return err
	})
	return created, err
}

func insertTicket(ctx context.Context, tx pgx.Tx, t models.Ticket) (models.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (id, complaint, building, priority, technician_id, technician_name, status, date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+ticketColumns,
		t.ID, t.Complaint, t.Building, string(t.Priority), t.TechnicianID, t.TechnicianName, string(t.Status), t.Date, t.CreatedAt)
	created, err := scanTicket(row)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	return created, nil
}

func (s *Store) ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, error) {
	limit, offset := NormalizePage(f.Limit, f.Offset)

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		wheres = append(wheres, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Building != "" {
		args = append(args, f.Building)
		wheres = append(wheres, fmt.Sprintf("building ILIKE $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, ErrNotFound
	}
	return t, err
}

func (s *Store) CloseTicket(ctx context.Context, id string, at time.Time) (models.Ticket, *models.Technician, error) {
	var (
		closed   models.Ticket
		released *models.Technician
	)
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current.Status == models.TicketClosed {
			return ErrTicketClosed
		}

		closed, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE tickets SET status = 'closed', closed_at = $1
			WHERE id = $2
			RETURNING `+ticketColumns, at, id))
		if err != nil {
			return err
		}
		if closed.TechnicianID == nil {
			return nil
		}

		row := tx.QueryRow(ctx, `
			UPDATE technicians SET status = 'available', updated_at = NOW()
			WHERE id = $1 AND status = 'busy'
			AND NOT EXISTS (SELECT 1 FROM tickets WHERE technician_id = $1 AND status = 'open')
			RETURNING `+technicianColumns, *closed.TechnicianID)
		tech, err := scanTechnician(row)
		if errors.Is(err, pgx.ErrNoRows) {
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

func scanTechnician(row pgx.Row) (models.Technician, error) {
	var (
		t      models.Technician
		status string
	)
	if err := row.Scan(&t.ID, &t.Name, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Technician{}, err
	}
	t.Status = models.TechnicianStatus(status)
	return t, nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var (
		t        models.Ticket
		priority string
		status   string
	)
	if err := row.Scan(&t.ID, &t.Complaint, &t.Building, &priority, &t.TechnicianID, &t.TechnicianName, &status, &t.Date, &t.CreatedAt, &t.ClosedAt); err != nil {
		return models.Ticket{}, err
	}
	t.Priority = models.Priority(priority)
	t.Status = models.TicketStatus(status)
	return t, nil
}

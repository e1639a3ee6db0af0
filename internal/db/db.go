package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opshub/backend/internal/models"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrNoTechnicianAvailable = errors.New("no technician available")
	ErrTicketClosed          = errors.New("ticket already closed")
)

// Repository is the technician directory and ticket store.
type Repository interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()

	ListTechnicians(ctx context.Context, status models.TechnicianStatus) ([]models.Technician, error)
	CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error)
	SetTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) (models.Technician, error)

	// CreateAssignedTicket claims the first available technician and stores
	// the ticket against it in one transaction. The claim is a conditional
	// update, so two concurrent callers never receive the same technician.
	CreateAssignedTicket(ctx context.Context, t models.Ticket) (models.Ticket, models.Technician, error)
	InsertTicket(ctx context.Context, t models.Ticket) (models.Ticket, error)
	ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, error)
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	// CloseTicket closes an open ticket. When its technician holds no other
	// open ticket the technician is returned to available and reported back.
	CloseTicket(ctx context.Context, id string, at time.Time) (models.Ticket, *models.Technician, error)
}

// Open picks a backend from the URL scheme: postgres:// and postgresql://
// use pgx, sqlite:// and sqlite::memory: use the embedded SQLite driver.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return New(ctx, u)
	case u == "sqlite::memory:":
		return NewSQLite(ctx, ":memory:")
	case strings.HasPrefix(u, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(u, "sqlite://"))
	case u == "":
		return nil, fmt.Errorf("DATABASE_URL is not set")
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", u)
	}
}

// NormalizePage returns the page bounds the stores apply: limit defaults to 50
// and may not exceed 200, offset is never negative.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

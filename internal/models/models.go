package models

import "time"

type TechnicianStatus string

const (
	TechnicianAvailable TechnicianStatus = "available"
	TechnicianBusy      TechnicianStatus = "busy"
	TechnicianOffline   TechnicianStatus = "offline"
)

func (s TechnicianStatus) Valid() bool {
	switch s {
	case TechnicianAvailable, TechnicianBusy, TechnicianOffline:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Priority is a ticket urgency tier. P1 is the most urgent.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// Rank returns 1 for P1 through 4 for P4, and 0 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	case PriorityP4:
		return 4
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// MoreUrgent reports whether p outranks other.
func (p Priority) MoreUrgent(other Priority) bool {
	if !p.Valid() {
		return false
	}
	if !other.Valid() {
		return true
	}
	return p.Rank() < other.Rank()
}

type Technician struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Status    TechnicianStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Ticket struct {
	ID             string       `json:"id"`
	Complaint      string       `json:"complaint"`
	Building       string       `json:"building"`
	Priority       Priority     `json:"priority"`
	TechnicianID   *string      `json:"technician_id"`
	TechnicianName string       `json:"technician_name"`
	Status         TicketStatus `json:"status"`
	Date           string       `json:"date"`
	CreatedAt      time.Time    `json:"created_at"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
}

// TicketDateLayout is the en-US numeric date attached to every ticket.
const TicketDateLayout = "01/02/2006"

type TicketFilter struct {
	Status   TicketStatus
	Priority Priority
	Building string
	Limit    int
	Offset   int
}

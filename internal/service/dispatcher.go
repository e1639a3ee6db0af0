package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/dispatch"
	"github.com/opshub/backend/internal/events"
	"github.com/opshub/backend/internal/models"
	"github.com/opshub/backend/internal/speech"
)

type Mode string

const (
	// ModeSilent is the always-on background listener. It writes tickets but
	// never answers the speaker.
	ModeSilent Mode = "silent"
	// ModeInteractive answers with a reply and, when possible, spoken audio.
	ModeInteractive Mode = "interactive"
)

func (m Mode) Valid() bool {
	return m == ModeSilent || m == ModeInteractive
}

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrInvalidStatus   = errors.New("invalid technician status")
	ErrEmptyName       = errors.New("technician name is empty")
)

type Utterance struct {
	Transcript string
	Mode       Mode
	Listener   string
}

// Result is what one utterance produced. Reply, Acknowledgment and Audio are
// only set in interactive mode.
type Result struct {
	Decision       dispatch.Decision  `json:"decision"`
	Reply          string             `json:"reply,omitempty"`
	Acknowledgment string             `json:"acknowledgment,omitempty"`
	Ticket         *models.Ticket     `json:"ticket,omitempty"`
	Technician     *models.Technician `json:"technician,omitempty"`
	Unassigned     bool               `json:"unassigned,omitempty"`
	Audio          []byte             `json:"-"`
	SpeechFallback bool               `json:"speech_fallback,omitempty"`
}

// Dispatcher runs the utterance pipeline: assistant reply, rule evaluation,
// technician claim with ticket write, change notification and speech.
type Dispatcher struct {
	Store     db.Repository
	Engine    *dispatch.Engine
	Assistant ai.Assistant
	Speech    speech.Synthesizer
	Notifier  events.Sink
	Logger    zerolog.Logger

	// PersistUnassigned stores a qualifying ticket with no technician when
	// nobody is available. Otherwise the issue is acknowledged and dropped.
	PersistUnassigned bool
	Now               func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

var defaultEngine = sync.OnceValue(dispatch.Default)

func (d *Dispatcher) engine() *dispatch.Engine {
	if d.Engine != nil {
		return d.Engine
	}
	return defaultEngine()
}

func (d *Dispatcher) HandleUtterance(ctx context.Context, u Utterance) (Result, error) {
	transcript := strings.TrimSpace(u.Transcript)
	if transcript == "" {
		return Result{}, ErrEmptyTranscript
	}
	if !u.Mode.Valid() {
		u.Mode = ModeSilent
	}

	reply, _ := ai.WithFallback(d.Assistant, d.Logger).Reply(ctx, transcript)
	decision := d.engine().EvaluateWithReply(transcript, reply)
	d.logDecision(u, transcript, decision)

	res := Result{Decision: decision}
	if u.Mode == ModeInteractive {
		res.Reply = reply
	}
	if decision.Outcome != dispatch.OutcomeCreateTicket {
		d.speak(ctx, u.Mode, &res)
		return res, nil
	}

	now := d.now()
	ticket := models.Ticket{
		ID:        uuid.NewString(),
		Complaint: decision.Complaint,
		Building:  decision.Building,
		Priority:  decision.Priority,
		Status:    models.TicketOpen,
		Date:      now.Format(models.TicketDateLayout),
		CreatedAt: now.UTC(),
	}

	created, tech, err := d.Store.CreateAssignedTicket(ctx, ticket)
	switch {
	case errors.Is(err, db.ErrNoTechnicianAvailable):
		res.Acknowledgment = NoTechnicianAcknowledgment(decision.Building)
		d.Logger.Warn().
			Str("building", decision.Building).
			Str("priority", string(decision.Priority)).
			Bool("persist_unassigned", d.PersistUnassigned).
			Msg("no technician available")
		if d.PersistUnassigned {
			stored, err := d.Store.InsertTicket(ctx, ticket)
			if err != nil {
				return res, fmt.Errorf("store unassigned ticket: %w", err)
			}
			res.Ticket = &stored
			res.Unassigned = true
			d.notify(ctx, events.Change{Table: events.TableTickets, Op: events.OpInsert, ID: stored.ID})
		}
	case err != nil:
		return res, fmt.Errorf("create ticket: %w", err)
	default:
		res.Ticket = &created
		res.Technician = &tech
		res.Acknowledgment = TicketAcknowledgment(created.Priority, tech.Name)
		d.Logger.Info().
			Str("ticket_id", created.ID).
			Str("building", created.Building).
			Str("priority", string(created.Priority)).
			Str("technician_id", tech.ID).
			Str("technician", tech.Name).
			Msg("ticket created")
		d.notify(ctx, events.Change{Table: events.TableTickets, Op: events.OpInsert, ID: created.ID})
		d.notify(ctx, events.Change{Table: events.TableTechnicians, Op: events.OpUpdate, ID: tech.ID})
	}

	if u.Mode != ModeInteractive {
		res.Acknowledgment = ""
	}
	d.speak(ctx, u.Mode, &res)
	return res, nil
}

// Evaluate runs the rules without touching the store or any provider.
func (d *Dispatcher) Evaluate(transcript, reply string) dispatch.Decision {
	return d.engine().EvaluateWithReply(transcript, reply)
}

// CloseTicket closes an open ticket and frees its technician when that was
// their last open ticket.
func (d *Dispatcher) CloseTicket(ctx context.Context, id string) (models.Ticket, *models.Technician, error) {
	ticket, released, err := d.Store.CloseTicket(ctx, id, d.now().UTC())
	if err != nil {
		return models.Ticket{}, nil, err
	}
	d.notify(ctx, events.Change{Table: events.TableTickets, Op: events.OpUpdate, ID: ticket.ID})
	if released != nil {
		d.notify(ctx, events.Change{Table: events.TableTechnicians, Op: events.OpUpdate, ID: released.ID})
	}
	d.Logger.Info().Str("ticket_id", ticket.ID).Bool("technician_released", released != nil).Msg("ticket closed")
	return ticket, released, nil
}

func (d *Dispatcher) SetTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) (models.Technician, error) {
	if !status.Valid() {
		return models.Technician{}, ErrInvalidStatus
	}
	tech, err := d.Store.SetTechnicianStatus(ctx, id, status)
	if err != nil {
		return models.Technician{}, err
	}
	d.notify(ctx, events.Change{Table: events.TableTechnicians, Op: events.OpUpdate, ID: tech.ID})
	return tech, nil
}

func (d *Dispatcher) AddTechnician(ctx context.Context, name string) (models.Technician, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Technician{}, ErrEmptyName
	}
	tech, err := d.Store.CreateTechnician(ctx, models.Technician{Name: name, Status: models.TechnicianAvailable})
	if err != nil {
		return models.Technician{}, err
	}
	d.notify(ctx, events.Change{Table: events.TableTechnicians, Op: events.OpInsert, ID: tech.ID})
	return tech, nil
}

func TicketAcknowledgment(p models.Priority, technician string) string {
	return fmt.Sprintf("Ticket created successfully with priority %s. Technician %s has been assigned.", p, technician)
}

func NoTechnicianAcknowledgment(building string) string {
	return fmt.Sprintf("No technician is available right now. Your issue in %s has been noted.", building)
}

func (d *Dispatcher) speak(ctx context.Context, mode Mode, res *Result) {
	if mode != ModeInteractive || d.Speech == nil {
		return
	}
	text := strings.TrimSpace(strings.TrimSpace(res.Reply) + " " + res.Acknowledgment)
	audio, err := d.Speech.Synthesize(ctx, text)
	if err != nil {
		res.SpeechFallback = true
		if !errors.Is(err, speech.ErrNotConfigured) {
			d.Logger.Warn().Err(err).Msg("speech synthesis failed, client will use on-device voice")
		}
		return
	}
	res.Audio = audio
}

func (d *Dispatcher) notify(ctx context.Context, c events.Change) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Publish(ctx, c); err != nil {
		d.Logger.Warn().Err(err).Str("key", c.RoutingKey()).Msg("change notification failed")
	}
}

func (d *Dispatcher) logDecision(u Utterance, transcript string, decision dispatch.Decision) {
	c := decision.Classification
	d.Logger.Info().
		Str("transcript", transcript).
		Str("outcome", string(decision.Outcome)).
		Str("reason", decision.Reason).
		Bool("child_input", c.IsChildInput).
		Bool("has_location", c.HasLocation).
		Str("location", c.Location).
		Bool("has_problem", c.HasProblem).
		Str("priority", string(c.Priority)).
		Strs("matches", c.Matches).
		Str("listener", u.Listener).
		Str("mode", string(u.Mode)).
		Msg("utterance evaluated")
}

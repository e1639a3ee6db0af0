// Package dispatch decides, from a single speech transcript, whether a
// maintenance ticket should be opened and at what priority.
//
// The engine is pure: the same transcript always yields the same Decision.
// Store writes, technician claims and notifications belong to the caller.
package dispatch

import (
	"strings"

	"github.com/opshub/backend/internal/models"
)

type Outcome string

const (
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeIncomplete   Outcome = "incomplete"
	OutcomeCreateTicket Outcome = "create_ticket"
)

const ReasonChildInput = "child_input"

// Classification is the transient per-transcript analysis behind a Decision.
type Classification struct {
	IsChildInput bool            `json:"is_child_input"`
	HasLocation  bool            `json:"has_location"`
	HasProblem   bool            `json:"has_problem"`
	Location     string          `json:"location,omitempty"`
	Priority     models.Priority `json:"priority"`
	Matches      []string        `json:"matches,omitempty"`
}

type Decision struct {
	Outcome        Outcome         `json:"outcome"`
	Reason         string          `json:"reason,omitempty"`
	Building       string          `json:"building,omitempty"`
	Priority       models.Priority `json:"priority,omitempty"`
	Complaint      string          `json:"complaint,omitempty"`
	Classification Classification  `json:"classification"`
}

type Engine struct {
	rules compiledRules
}

func New(r Rules) (*Engine, error) {
	c, err := r.compile()
	if err != nil {
		return nil, err
	}
	return &Engine{rules: c}, nil
}

// Default returns an engine over DefaultRules.
func Default() *Engine {
	e, err := New(DefaultRules())
	if err != nil {
		panic("dispatch: default rules do not compile: " + err.Error())
	}
	return e
}

func (e *Engine) Evaluate(transcript string) Decision {
	return e.EvaluateWithReply(transcript, "")
}

// EvaluateWithReply also treats the assistant's reply as a child-input signal
// when it carries the configured marker phrase.
func (e *Engine) EvaluateWithReply(transcript, reply string) Decision {
	c := e.Classify(transcript)
	if !c.IsChildInput && e.rules.childMarker != "" && strings.Contains(strings.ToLower(reply), e.rules.childMarker) {
		c.IsChildInput = true
	}

	d := Decision{Classification: c}
	switch {
	case c.IsChildInput:
		d.Outcome = OutcomeSuppressed
		d.Reason = ReasonChildInput
	case !c.HasLocation || !c.HasProblem:
		d.Outcome = OutcomeIncomplete
	default:
		d.Outcome = OutcomeCreateTicket
		d.Building = FormatBuilding(c.Location)
		d.Priority = c.Priority
		d.Complaint = strings.TrimSpace(transcript)
	}
	return d
}

// Classify runs every rule against the transcript without deciding.
func (e *Engine) Classify(transcript string) Classification {
	c := Classification{Priority: models.PriorityP4}

	if e.rules.child != nil {
		if m := e.rules.child.FindAllString(transcript, -1); len(m) > 0 {
			c.IsChildInput = true
			c.Matches = appendLower(c.Matches, m)
		}
	}

	if loc, ok := e.location(transcript); ok {
		c.HasLocation = true
		c.Location = loc
	}

	if e.rules.problem != nil {
		if m := e.rules.problem.FindAllString(transcript, -1); len(m) > 0 {
			c.HasProblem = true
			c.Matches = appendLower(c.Matches, m)
		}
	}

	for _, tier := range e.rules.priorities {
		if tier.re.MatchString(transcript) {
			c.Priority = tier.priority
			break
		}
	}
	return c
}

func (e *Engine) location(transcript string) (string, bool) {
	for _, re := range e.rules.locations {
		for _, m := range re.FindAllStringSubmatch(transcript, -1) {
			tok := m[1]
			if tok == "" {
				continue
			}
			if _, stop := e.rules.stopWords[strings.ToLower(tok)]; stop {
				continue
			}
			return tok, true
		}
	}
	return "", false
}

// FormatBuilding renders a captured location token as stored on tickets.
func FormatBuilding(token string) string {
	return "Building " + strings.ToUpper(strings.TrimSpace(token))
}

func appendLower(dst []string, matches []string) []string {
	for _, m := range matches {
		dst = append(dst, strings.ToLower(m))
	}
	return dst
}

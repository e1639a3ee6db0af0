package dispatch

import (
	"reflect"
	"testing"

	"github.com/opshub/backend/internal/models"
)

func TestEvaluateScenarios(t *testing.T) {
	e := Default()

	tests := []struct {
		name       string
		transcript string
		outcome    Outcome
		building   string
		priority   models.Priority
	}{
		{"leak is critical", "There is a leak in building A", OutcomeCreateTicket, "Building A", models.PriorityP1},
		{"child suppressed", "The monster broke my toy in building B", OutcomeSuppressed, "", ""},
		{"no building", "The lights are flickering", OutcomeIncomplete, "", ""},
		{"ac is high", "AC not working in building C", OutcomeCreateTicket, "Building C", models.PriorityP2},
		{"wifi is medium", "Wifi is down in building D", OutcomeCreateTicket, "Building D", models.PriorityP3},
		{"default low", "The door is broken in building e2", OutcomeCreateTicket, "Building E2", models.PriorityP4},
		{"no problem keyword", "I am standing in building F", OutcomeIncomplete, "", ""},
		{"fire counts as problem", "There's a fire at building 7", OutcomeCreateTicket, "Building 7", models.PriorityP1},
		{"from building", "Printer jam from Building north", OutcomeCreateTicket, "Building NORTH", models.PriorityP4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.transcript)
			if d.Outcome != tt.outcome {
				t.Fatalf("expected outcome %s, got %s (%+v)", tt.outcome, d.Outcome, d.Classification)
			}
			if d.Building != tt.building {
				t.Fatalf("expected building %q, got %q", tt.building, d.Building)
			}
			if d.Priority != tt.priority {
				t.Fatalf("expected priority %q, got %q", tt.priority, d.Priority)
			}
		})
	}
}

func TestEvaluateChildInputTakesPrecedence(t *testing.T) {
	e := Default()
	for _, transcript := range []string{
		"Mommy there is a gas leak in building A",
		"Batman says the elevator is broken in building Z",
		"Let's play, the lights in building C are off",
	} {
		d := e.Evaluate(transcript)
		if d.Outcome != OutcomeSuppressed || d.Reason != ReasonChildInput {
			t.Fatalf("expected child suppression for %q, got %+v", transcript, d)
		}
	}
}

func TestEvaluateChildMarkerInReply(t *testing.T) {
	e := Default()
	reply := "This seems like a child's input. Please ask an adult to use this system."
	d := e.EvaluateWithReply("There is a leak in building A", reply)
	if d.Outcome != OutcomeSuppressed {
		t.Fatalf("expected suppression from reply marker, got %s", d.Outcome)
	}

	d = e.EvaluateWithReply("There is a leak in building A", "Thanks, we noted the leak.")
	if d.Outcome != OutcomeCreateTicket {
		t.Fatalf("expected ticket when reply is ordinary, got %s", d.Outcome)
	}
}

func TestEvaluateWordBoundaries(t *testing.T) {
	e := Default()

	d := e.Evaluate("The display is broken in building A")
	if d.Outcome != OutcomeCreateTicket {
		t.Fatalf("display must not trip the child gate, got %+v", d)
	}

	d = e.Evaluate("Please replace the broken chair in building B")
	if d.Priority != models.PriorityP4 {
		t.Fatalf("replace must not match ac, got %s", d.Priority)
	}
}

func TestEvaluateHighestPriorityWins(t *testing.T) {
	e := Default()
	d := e.Evaluate("The lights went out and there is a leak in building A")
	if d.Priority != models.PriorityP1 {
		t.Fatalf("expected P1, got %s", d.Priority)
	}
	d = e.Evaluate("Internet and heating both failed in building A")
	if d.Priority != models.PriorityP2 {
		t.Fatalf("expected P2, got %s", d.Priority)
	}
}

func TestEvaluateSkipsStopWordLocation(t *testing.T) {
	e := Default()
	d := e.Evaluate("The building is leaking")
	if d.Outcome != OutcomeIncomplete {
		t.Fatalf("expected incomplete, got %+v", d)
	}

	d = e.Evaluate("The building is leaking in building Q")
	if d.Building != "Building Q" {
		t.Fatalf("expected Building Q, got %q", d.Building)
	}
}

func TestEvaluateFirstNamedBuildingWins(t *testing.T) {
	e := Default()
	d := e.Evaluate("Building A staff say the heater in building B is broken")
	if d.Outcome != OutcomeCreateTicket {
		t.Fatalf("expected ticket, got %+v", d)
	}
	if d.Building != "Building A" {
		t.Fatalf("expected Building A, got %q", d.Building)
	}
}

func TestEvaluateComplaintIsTrimmedTranscript(t *testing.T) {
	e := Default()
	d := e.Evaluate("   toilet overflowing in building h  ")
	if d.Complaint != "toilet overflowing in building h" {
		t.Fatalf("unexpected complaint %q", d.Complaint)
	}
	if d.Building != "Building H" {
		t.Fatalf("unexpected building %q", d.Building)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := Default()
	transcripts := []string{
		"There is a leak in building A",
		"The lights are flickering",
		"The monster broke my toy in building B",
	}
	for _, tr := range transcripts {
		first := e.Evaluate(tr)
		for i := 0; i < 5; i++ {
			if got := e.Evaluate(tr); !reflect.DeepEqual(first, got) {
				t.Fatalf("decision changed for %q: %+v vs %+v", tr, first, got)
			}
		}
	}
}

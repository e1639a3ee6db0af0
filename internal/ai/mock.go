package ai

import (
	"context"
	"regexp"
)

var (
	mockChild    = regexp.MustCompile(`(?i)\b(?:monster|toys?|mommy|daddy|batman)\b`)
	mockBuilding = regexp.MustCompile(`(?i)\bbuilding\s+[a-z0-9]+`)
)

// MockAssistant answers without a network call. It recognises the obvious
// child-input cues so local runs exercise the same suppression path.
type MockAssistant struct{}

func (MockAssistant) Reply(_ context.Context, message string) (string, error) {
	switch {
	case mockChild.MatchString(message):
		return ChildReply, nil
	case mockBuilding.MatchString(message):
		return "Thank you, I have noted the issue and someone will look into it shortly.", nil
	default:
		return "Could you tell me what the problem is and which building you are in?", nil
	}
}

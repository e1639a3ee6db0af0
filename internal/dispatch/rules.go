package dispatch

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opshub/backend/internal/models"
)

// Rules is the whole classification model: keyword fragments and location
// patterns. Keyword entries are regular expression fragments matched
// case-insensitively from a word start.
type Rules struct {
	ChildKeywords     []string       `yaml:"child_keywords"`
	ChildReplyMarker  string         `yaml:"child_reply_marker"`
	LocationPatterns  []string       `yaml:"location_patterns"`
	LocationStopWords []string       `yaml:"location_stop_words"`
	ProblemKeywords   []string       `yaml:"problem_keywords"`
	Priorities        []PriorityRule `yaml:"priorities"`
}

type PriorityRule struct {
	Priority models.Priority `yaml:"priority"`
	Keywords []string        `yaml:"keywords"`
}

// DefaultRules returns the built-in vocabulary. The returned value is a fresh
// copy and may be modified by the caller.
func DefaultRules() Rules {
	return Rules{
		ChildKeywords: []string{
			`monster`, `toys?\b`, `mommy`, `daddy`, `play`, `games?\b`, `batman`, `spider-?man`,
		},
		ChildReplyMarker: "child's input",
		LocationPatterns: []string{
			`\bbuilding\s+([a-z0-9]+)`,
			`\b(?:in|at|from)\s+building\s+([a-z0-9]+)`,
		},
		LocationStopWords: []string{
			"is", "was", "has", "had", "are", "were", "the", "and", "or", "that",
			"this", "with", "for", "of", "to", "where", "which", "itself",
		},
		ProblemKeywords: []string{
			`broken`, `not\s+working`, `leak`, `fix`, `repair`, `ac\b`, `a/c\b`,
			`air\s+condition`, `heater`, `heating`, `cooling`, `lights?\b`, `lighting`,
			`electrical`, `plumbing`, `elevator`, `fans?\b`, `toilet`, `doors?\b`,
			`windows?\b`, `internet`, `wi-?fi`, `computer`, `printer`, `projector`,
			`issue`, `problem`,
		},
		Priorities: []PriorityRule{
			{Priority: models.PriorityP1, Keywords: []string{
				`leak`, `fires?\b`, `gas\b`, `emergenc`, `flood`, `electric(?:al)?\s+shock`,
			}},
			{Priority: models.PriorityP2, Keywords: []string{
				`ac\b`, `a/c\b`, `air\s+condition`, `heating`, `heater`, `electrical`, `power`, `elevator`,
			}},
			{Priority: models.PriorityP3, Keywords: []string{
				`lights?\b`, `lighting`, `internet`, `wi-?fi`, `network`, `computer`,
			}},
		},
	}
}

// LoadRules reads a YAML rules file on top of the defaults. Lists present in
// the file replace the default lists entirely.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// FromFile builds an engine from a rules file, or from the defaults when
// path is empty.
func FromFile(path string) (*Engine, error) {
	if path == "" {
		return New(DefaultRules())
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules)
}

// YAML encodes the rules in the same format LoadRules reads.
func (r Rules) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

type compiledPriority struct {
	priority models.Priority
	re       *regexp.Regexp
}

type compiledRules struct {
	child       *regexp.Regexp
	childMarker string
	locations   []*regexp.Regexp
	stopWords   map[string]struct{}
	problem     *regexp.Regexp
	priorities  []compiledPriority
}

func (r Rules) compile() (compiledRules, error) {
	var out compiledRules
	var err error

	if out.child, err = keywordRegexp(r.ChildKeywords); err != nil {
		return out, fmt.Errorf("child keywords: %w", err)
	}
	out.childMarker = strings.ToLower(strings.TrimSpace(r.ChildReplyMarker))

	if len(r.LocationPatterns) == 0 {
		return out, fmt.Errorf("at least one location pattern is required")
	}
	for _, p := range r.LocationPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return out, fmt.Errorf("location pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return out, fmt.Errorf("location pattern %q has no capture group", p)
		}
		out.locations = append(out.locations, re)
	}

	out.stopWords = make(map[string]struct{}, len(r.LocationStopWords))
	for _, w := range r.LocationStopWords {
		out.stopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	tiers := append([]PriorityRule(nil), r.Priorities...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Priority.MoreUrgent(tiers[j].Priority)
	})

	problemTerms := append([]string(nil), r.ProblemKeywords...)
	for _, tier := range tiers {
		if !tier.Priority.Valid() {
			return out, fmt.Errorf("unknown priority %q", tier.Priority)
		}
		if tier.Priority == models.PriorityP4 || len(tier.Keywords) == 0 {
			continue
		}
		re, err := keywordRegexp(tier.Keywords)
		if err != nil {
			return out, fmt.Errorf("%s keywords: %w", tier.Priority, err)
		}
		out.priorities = append(out.priorities, compiledPriority{priority: tier.Priority, re: re})
		problemTerms = append(problemTerms, tier.Keywords...)
	}

	if out.problem, err = keywordRegexp(problemTerms); err != nil {
		return out, fmt.Errorf("problem keywords: %w", err)
	}
	return out, nil
}

// keywordRegexp joins fragments into one case-insensitive alternation
// anchored at a word start. An empty list yields nil, which matches nothing.
func keywordRegexp(fragments []string) (*regexp.Regexp, error) {
	var parts []string
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := regexp.Compile(f); err != nil {
			return nil, fmt.Errorf("keyword %q: %w", f, err)
		}
		parts = append(parts, "(?:"+f+")")
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(parts, "|") + `)`)
}

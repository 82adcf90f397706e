// Package submission tracks per-conversation submissions and dispatches them
// to the matching extractor once every expected artifact has arrived.
package submission

import (
	"strings"

	"analytics-intake/internal/domain"
)

// Event is one inbound occurrence in a conversation: either a declaration
// text or the arrival of a single artifact.
type Event struct {
	Text     string
	Artifact *domain.Artifact
}

// Declaration builds a text declaration event.
func Declaration(text string) Event {
	return Event{Text: text}
}

// Arrival builds an artifact arrival event.
func Arrival(a domain.Artifact) Event {
	return Event{Artifact: &a}
}

type Outcome string

const (
	// OutcomeIgnored covers text that declares nothing new.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnroutable covers artifacts sent before any declaration.
	OutcomeUnroutable Outcome = "unroutable"
	OutcomeDeclared   Outcome = "declared"
	// OutcomeAwaiting means the artifact was kept and more are expected.
	OutcomeAwaiting   Outcome = "awaiting"
	OutcomeMismatch   Outcome = "format_mismatch"
	OutcomeDispatched Outcome = "dispatched"
)

// Decision describes what a transition did.
type Decision struct {
	Outcome   Outcome
	Format    domain.SourceFormat
	Artifacts []domain.Artifact
	Received  int
	Expected  int
}

// Transition applies ev to the current state. It returns the state to keep,
// or nil when nothing should be kept, together with the decision taken.
// It has no side effects and may be re-applied after a failed write.
func Transition(current *domain.ConversationState, ev Event) (*domain.ConversationState, Decision) {
	next := current.Clone()
	if next == nil {
		next = &domain.ConversationState{}
	}

	if ev.Artifact == nil {
		format, ok := DetectFormat(ev.Text)
		if !ok || next.Format != "" {
			return keep(next), Decision{
				Outcome:  OutcomeIgnored,
				Format:   next.Format,
				Received: len(next.Artifacts),
				Expected: next.Format.RequiredArtifacts(),
			}
		}
		next.Format = format
		next.Artifacts = nil
		return next, Decision{
			Outcome:  OutcomeDeclared,
			Format:   format,
			Expected: format.RequiredArtifacts(),
		}
	}

	if next.Format == "" {
		return nil, Decision{Outcome: OutcomeUnroutable}
	}

	expected := next.Format.RequiredArtifacts()
	if next.Format == domain.FormatYouTube && !IsTabular(ev.Artifact.Filename) {
		return next, Decision{
			Outcome:  OutcomeMismatch,
			Format:   next.Format,
			Received: len(next.Artifacts),
			Expected: expected,
		}
	}

	next.Artifacts = append(next.Artifacts, *ev.Artifact)
	if len(next.Artifacts) >= expected {
		return nil, Decision{
			Outcome:   OutcomeDispatched,
			Format:    next.Format,
			Artifacts: next.Artifacts,
			Received:  len(next.Artifacts),
			Expected:  expected,
		}
	}
	return next, Decision{
		Outcome:  OutcomeAwaiting,
		Format:   next.Format,
		Received: len(next.Artifacts),
		Expected: expected,
	}
}

// keep drops states that carry no declaration.
func keep(s *domain.ConversationState) *domain.ConversationState {
	if s.Format == "" {
		return nil
	}
	return s
}

// DetectFormat finds a format keyword in a declaration, case-insensitively.
func DetectFormat(text string) (domain.SourceFormat, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "tiktok"):
		return domain.FormatTikTok, true
	case strings.Contains(lower, "instagram"), strings.Contains(lower, "insta"):
		return domain.FormatInstagram, true
	case strings.Contains(lower, "youtube"):
		return domain.FormatYouTube, true
	}
	return "", false
}

// IsTabular reports whether filename has the CSV extension.
func IsTabular(filename string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".csv")
}

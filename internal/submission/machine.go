package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/extract"
)

var (
	// ErrFormatMismatch is returned when an artifact does not fit the declared
	// format. The declaration is kept so the participant can retry.
	ErrFormatMismatch = errors.New("submission: artifact does not match declared format")
	// ErrDecode wraps failures to download or read an artifact at dispatch time.
	ErrDecode = errors.New("submission: artifact could not be decoded")
)

// Decoder turns artifacts into extractor input.
type Decoder interface {
	Text(ctx context.Context, a domain.Artifact) (string, error)
	Rows(ctx context.Context, a domain.Artifact) ([]map[string]string, error)
}

// Result is the outcome of handling one event.
type Result struct {
	Decision
	// Metrics is set when the event completed a submission.
	Metrics *domain.Metrics
}

type Machine struct {
	store   Store
	decoder Decoder
	logger  *slog.Logger
}

type Option func(*Machine)

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMachine(store Store, decoder Decoder, opts ...Option) (*Machine, error) {
	if store == nil {
		return nil, errors.New("submission: store must not be nil")
	}
	if decoder == nil {
		return nil, errors.New("submission: decoder must not be nil")
	}
	m := &Machine{store: store, decoder: decoder, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Handle applies ev to the conversation. When the event completes a
// submission the state is removed before extraction runs, so a submission is
// dispatched at most once. Extraction failures are returned after removal and
// the participant has to start over.
func (m *Machine) Handle(ctx context.Context, conversationID string, ev Event) (Result, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Result{}, errors.New("submission: conversation id is required")
	}

	var decision Decision
	err := m.store.Update(ctx, conversationID, func(current *domain.ConversationState) *domain.ConversationState {
		next, d := Transition(current, ev)
		decision = d
		return next
	})
	if err != nil {
		return Result{}, fmt.Errorf("submission: update state: %w", err)
	}

	res := Result{Decision: decision}
	switch decision.Outcome {
	case OutcomeMismatch:
		return res, ErrFormatMismatch
	case OutcomeDispatched:
		metrics, err := m.dispatch(ctx, conversationID, decision)
		if err != nil {
			return res, err
		}
		res.Metrics = &metrics
	}
	return res, nil
}

func (m *Machine) dispatch(ctx context.Context, conversationID string, d Decision) (domain.Metrics, error) {
	switch d.Format {
	case domain.FormatTikTok:
		text, err := m.text(ctx, d.Artifacts[0])
		if err != nil {
			return domain.Metrics{}, err
		}
		m.logger.Debug("tiktok ocr text", "conversation_id", conversationID, "text", text)
		return extract.TikTok(text), nil

	case domain.FormatInstagram:
		first, err := m.text(ctx, d.Artifacts[0])
		if err != nil {
			return domain.Metrics{}, err
		}
		second, err := m.text(ctx, d.Artifacts[1])
		if err != nil {
			return domain.Metrics{}, err
		}
		m.logger.Debug("instagram ocr text", "conversation_id", conversationID, "first", first, "second", second)
		metrics, err := extract.Instagram(first, second)
		if err != nil {
			return domain.Metrics{}, fmt.Errorf("submission: instagram: %w", err)
		}
		return metrics, nil

	case domain.FormatYouTube:
		rows, err := m.decoder.Rows(ctx, d.Artifacts[0])
		if err != nil {
			return domain.Metrics{}, fmt.Errorf("%w: %s: %w", ErrDecode, d.Artifacts[0].Filename, err)
		}
		return extract.YouTube(rows), nil
	}
	return domain.Metrics{}, fmt.Errorf("submission: unsupported format %q", d.Format)
}

func (m *Machine) text(ctx context.Context, a domain.Artifact) (string, error) {
	text, err := m.decoder.Text(ctx, a)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDecode, a.Filename, err)
	}
	return text, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/extract"
	"analytics-intake/internal/metrics"
	"analytics-intake/internal/submission"
)

const (
	kindDeclaration = "declaration"
	kindArtifact    = "artifact"
	kindIgnored     = "ignored"

	outcomeSaved         = "saved"
	outcomePersistFailed = "persist_failed"
	outcomeAmbiguous     = "ambiguous"
	outcomeUnreadable    = "unreadable"
)

// Machine applies chat events to conversation state. *submission.Machine satisfies it.
type Machine interface {
	Handle(ctx context.Context, conversationID string, ev submission.Event) (submission.Result, error)
}

// Recorder persists a completed submission.
type Recorder interface {
	Record(ctx context.Context, s domain.Submission) error
}

type Author struct {
	ID          string
	Name        string
	DisplayName string
	Bot         bool
}

// IntakeInput is one chat message posted in a submission conversation.
type IntakeInput struct {
	ConversationID  string
	ParentChannelID string
	MessageID       string
	Author          Author
	Text            string
	Attachments     []domain.Artifact
}

type Reply struct {
	Code ErrorCode `json:"code,omitempty"`
	Text string    `json:"text"`
}

type IntakeOutput struct {
	ConversationID string
	Replies        []Reply
	Submissions    []domain.Submission
}

type IntakeService struct {
	machine        Machine
	recorders      []Recorder
	ticketsChannel string
	logger         *slog.Logger
	now            func() time.Time
}

type IntakeOption func(*IntakeService)

// WithTicketsChannel restricts intake to conversations under channelID.
func WithTicketsChannel(channelID string) IntakeOption {
	return func(s *IntakeService) {
		s.ticketsChannel = strings.TrimSpace(channelID)
	}
}

func WithLogger(l *slog.Logger) IntakeOption {
	return func(s *IntakeService) {
		if l != nil {
			s.logger = l
		}
	}
}

func withClock(now func() time.Time) IntakeOption {
	return func(s *IntakeService) {
		s.now = now
	}
}

// NewIntakeService wires the state machine to the persistence sinks. Sinks are
// called in order and all of them must succeed for a submission to count as saved.
func NewIntakeService(m Machine, recorders []Recorder, opts ...IntakeOption) (*IntakeService, error) {
	if m == nil {
		return nil, errors.New("usecase: machine must not be nil")
	}
	if len(recorders) == 0 {
		return nil, errors.New("usecase: at least one recorder is required")
	}
	for i, r := range recorders {
		if r == nil {
			return nil, fmt.Errorf("usecase: recorder %d is nil", i)
		}
	}
	s := &IntakeService{
		machine:   m,
		recorders: recorders,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *IntakeService) Handle(ctx context.Context, in IntakeInput) (IntakeOutput, error) {
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		return IntakeOutput{}, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	submitter := strings.TrimSpace(in.Author.DisplayName)
	if submitter == "" {
		submitter = strings.TrimSpace(in.Author.Name)
	}
	if submitter == "" {
		return IntakeOutput{}, newError(ErrorInvalidInput, "missing_author", nil)
	}

	out := IntakeOutput{ConversationID: convID}
	logger := s.logger.With("conversation_id", convID, "message_id", in.MessageID)

	if in.Author.Bot {
		metrics.RecordEvent(kindIgnored)
		return out, nil
	}
	if s.ticketsChannel != "" && strings.TrimSpace(in.ParentChannelID) != s.ticketsChannel {
		metrics.RecordEvent(kindIgnored)
		logger.Debug("event outside tickets channel ignored", "parent_channel_id", in.ParentChannelID)
		return out, nil
	}

	var events []submission.Event
	if len(in.Attachments) == 0 {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			metrics.RecordEvent(kindIgnored)
			return out, nil
		}
		metrics.RecordEvent(kindDeclaration)
		events = append(events, submission.Declaration(text))
	} else {
		for _, a := range in.Attachments {
			metrics.RecordEvent(kindArtifact)
			events = append(events, submission.Arrival(a))
		}
	}

	for _, ev := range events {
		if err := s.apply(ctx, logger, convID, submitter, ev, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *IntakeService) apply(ctx context.Context, logger *slog.Logger, convID, submitter string, ev submission.Event, out *IntakeOutput) error {
	start := time.Now()
	res, err := s.machine.Handle(ctx, convID, ev)
	format := string(res.Format)

	switch {
	case errors.Is(err, submission.ErrFormatMismatch):
		metrics.RecordSubmission(format, string(res.Outcome))
		out.Replies = append(out.Replies, Reply{Code: ErrorFormatMismatch, Text: replyNeedCSV})
		return nil
	case errors.Is(err, extract.ErrAmbiguousInput):
		metrics.RecordSubmission(format, outcomeAmbiguous)
		logger.Warn("instagram screens could not be classified", "err", err)
		out.Replies = append(out.Replies, Reply{Code: ErrorAmbiguousInput, Text: replyAmbiguous})
		return nil
	case errors.Is(err, submission.ErrDecode):
		metrics.RecordSubmission(format, outcomeUnreadable)
		logger.Error("artifact could not be decoded", "format", format, "err", err)
		out.Replies = append(out.Replies, Reply{Code: ErrorUnreadableArtifact, Text: replyUnreadable})
		return nil
	case err != nil:
		return newError(ErrorInternal, "state_update_error", err)
	}

	switch res.Outcome {
	case submission.OutcomeDeclared:
		metrics.RecordSubmission(format, string(res.Outcome))
		logger.Info("submission declared", "format", format)
		out.Replies = append(out.Replies, Reply{Text: declaredReply(res.Format)})

	case submission.OutcomeAwaiting:
		metrics.RecordSubmission(format, string(res.Outcome))
		out.Replies = append(out.Replies, Reply{Text: fmt.Sprintf(replyAwaitingSecond, res.Received, res.Expected)})

	case submission.OutcomeDispatched:
		metrics.ObserveExtraction(format, time.Since(start))
		sub := domain.Submission{
			ID:             newUUID(),
			ConversationID: convID,
			Submitter:      submitter,
			Format:         res.Format,
			Metrics:        *res.Metrics,
			SubmittedAt:    s.now().UTC(),
		}
		if err := s.persist(ctx, sub); err != nil {
			metrics.RecordSubmission(format, outcomePersistFailed)
			logger.Error("failed to persist submission", "format", format, "submission_id", sub.ID, "err", err)
			out.Replies = append(out.Replies, Reply{Code: ErrorPersistFailed, Text: replyPersistFailed})
			return nil
		}
		metrics.RecordSubmission(format, outcomeSaved)
		logger.Info("submission saved",
			"format", format,
			"submission_id", sub.ID,
			"submitter", submitter,
			"views", sub.Metrics.Views,
			"likes", sub.Metrics.Likes,
			"comments", sub.Metrics.Comments,
			"shares", sub.Metrics.Shares,
		)
		out.Submissions = append(out.Submissions, sub)
		out.Replies = append(out.Replies, Reply{Text: SavedReply(sub.Format, sub.Metrics)})

	default:
		metrics.RecordSubmission(format, string(res.Outcome))
		logger.Debug("event produced no reply", "outcome", res.Outcome)
	}
	return nil
}

func (s *IntakeService) persist(ctx context.Context, sub domain.Submission) error {
	for _, r := range s.recorders {
		if err := r.Record(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

var newUUID = func() string {
	return uuid.NewString()
}

package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

type ReminderUseCase interface {
	Send(ctx context.Context) error
}

// ReminderHandler posts the weekly reminder when the EventBridge schedule fires.
type ReminderHandler struct {
	uc     ReminderUseCase
	logger *slog.Logger
}

func NewReminderHandler(uc ReminderUseCase) (*ReminderHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: reminder use case must not be nil")
	}
	return &ReminderHandler{uc: uc, logger: slog.Default()}, nil
}

// Handle returns the send error so the scheduler's retry policy applies.
func (h *ReminderHandler) Handle(ctx context.Context, ev events.CloudWatchEvent) error {
	logger := h.logger.With("event_id", ev.ID, "scheduled_at", ev.Time)
	if err := h.uc.Send(ctx); err != nil {
		logger.Error("weekly reminder failed", "err", err)
		return err
	}
	logger.Info("weekly reminder sent")
	return nil
}

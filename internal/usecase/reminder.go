package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"analytics-intake/internal/metrics"
)

// Poster sends a chat message. *discord.Client satisfies it.
type Poster interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ReminderService posts the weekly nudge asking the team to submit analytics.
type ReminderService struct {
	poster           Poster
	channelID        string
	teamRoleID       string
	ticketsChannelID string
	logger           *slog.Logger
}

type ReminderConfig struct {
	ChannelID        string
	TeamRoleID       string
	TicketsChannelID string
}

func NewReminderService(p Poster, cfg ReminderConfig, logger *slog.Logger) (*ReminderService, error) {
	if p == nil {
		return nil, errors.New("usecase: poster must not be nil")
	}
	cfg.ChannelID = strings.TrimSpace(cfg.ChannelID)
	cfg.TeamRoleID = strings.TrimSpace(cfg.TeamRoleID)
	cfg.TicketsChannelID = strings.TrimSpace(cfg.TicketsChannelID)
	if cfg.ChannelID == "" || cfg.TeamRoleID == "" || cfg.TicketsChannelID == "" {
		return nil, errors.New("usecase: reminder channel, team role and tickets channel are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{
		poster:           p,
		channelID:        cfg.ChannelID,
		teamRoleID:       cfg.TeamRoleID,
		ticketsChannelID: cfg.TicketsChannelID,
		logger:           logger,
	}, nil
}

// ReminderText mentions the team role and links the tickets channel.
func ReminderText(teamRoleID, ticketsChannelID string) string {
	return fmt.Sprintf("<@&%s> Hey team! Submit last week's analytics in <#%s> threads!", teamRoleID, ticketsChannelID)
}

// Send posts one reminder.
func (s *ReminderService) Send(ctx context.Context) error {
	id, err := s.poster.SendMessage(ctx, s.channelID, ReminderText(s.teamRoleID, s.ticketsChannelID))
	if err != nil {
		metrics.RecordReminder("error")
		s.logger.Error("reminder post failed", "channel_id", s.channelID, "err", err)
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return newError(ErrorRateLimited, "discord_rate_limited", err)
		}
		return newError(ErrorUpstream, "discord_error", err)
	}
	metrics.RecordReminder("ok")
	s.logger.Info("reminder posted", "channel_id", s.channelID, "message_id", id)
	return nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

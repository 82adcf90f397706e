// Package app assembles services from configuration. Every entry point under
// cmd/ builds its dependencies through here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"analytics-intake/internal/config"
	"analytics-intake/internal/decode"
	"analytics-intake/internal/integrations/discord"
	"analytics-intake/internal/integrations/fetch"
	"analytics-intake/internal/integrations/notion"
	"analytics-intake/internal/integrations/ocr"
	"analytics-intake/internal/integrations/paramstore"
	"analytics-intake/internal/metrics"
	"analytics-intake/internal/repository"
	"analytics-intake/internal/submission"
	"analytics-intake/internal/usecase"
)

const (
	notionTokenKey  = "notion-token"
	discordTokenKey = "discord-token"
)

// LoadAWS loads the default AWS SDK configuration.
func LoadAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewLedger returns the DynamoDB client backing state and the submission ledger.
func NewLedger(cfg config.Config, awsCfg aws.Config) (*repository.Client, error) {
	client, err := repository.New(
		awsdynamodb.NewFromConfig(awsCfg),
		cfg.State.Table,
		repository.WithStateTTL(cfg.State.TTL),
	)
	if err != nil {
		return nil, fmt.Errorf("app: state client: %w", err)
	}
	return client, nil
}

// NewIntake wires the intake use case: state store, artifact decoding, the
// submission state machine and the persistence sinks.
func NewIntake(cfg config.Config, awsCfg aws.Config, logger *slog.Logger) (*usecase.IntakeService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store  submission.Store
		ledger *repository.Client
		err    error
	)
	if cfg.State.Table != "" {
		ledger, err = NewLedger(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
	}
	switch cfg.State.Backend {
	case config.BackendMemory:
		store = submission.NewMemoryStore()
	default:
		if ledger == nil {
			return nil, fmt.Errorf("app: state table is required for the %s backend", cfg.State.Backend)
		}
		store = ledger
	}

	fetcher := fetch.New(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
	)
	recognizer, err := ocr.NewTesseract(
		ocr.ExecRunner{Logger: logger},
		ocr.WithBinary(cfg.OCR.Binary),
		ocr.WithLanguage(cfg.OCR.Language),
		ocr.WithPageSegMode(cfg.OCR.PSM),
		ocr.WithObserver(metrics.ObserveOCR),
	)
	if err != nil {
		return nil, fmt.Errorf("app: ocr: %w", err)
	}
	decoder, err := decode.New(fetcher, recognizer)
	if err != nil {
		return nil, fmt.Errorf("app: decoder: %w", err)
	}
	machine, err := submission.NewMachine(store, decoder, submission.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: state machine: %w", err)
	}

	var recorders []usecase.Recorder
	if ledger != nil {
		recorders = append(recorders, ledger)
	}
	if cfg.Notion.DatabaseID != "" {
		tokens, err := newTokenSource(cfg, awsCfg, notionTokenKey)
		if err != nil {
			return nil, err
		}
		notionClient, err := notion.NewClient(tokens, cfg.Notion.DatabaseID, notion.WithBaseURL(cfg.Notion.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("app: notion: %w", err)
		}
		recorders = append(recorders, notionClient)
	}

	svc, err := usecase.NewIntakeService(machine, recorders,
		usecase.WithTicketsChannel(cfg.Discord.TicketsChannelID),
		usecase.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: intake service: %w", err)
	}
	return svc, nil
}

// NewReminder wires the weekly reminder use case.
func NewReminder(cfg config.Config, awsCfg aws.Config, logger *slog.Logger) (*usecase.ReminderService, error) {
	if err := cfg.ValidateReminder(); err != nil {
		return nil, err
	}
	tokens, err := newTokenSource(cfg, awsCfg, discordTokenKey)
	if err != nil {
		return nil, err
	}
	poster, err := discord.NewClient(tokens, discord.WithBaseURL(cfg.Discord.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("app: discord: %w", err)
	}
	svc, err := usecase.NewReminderService(poster, usecase.ReminderConfig{
		ChannelID:        cfg.Discord.ReminderChannelID,
		TeamRoleID:       cfg.Discord.TeamRoleID,
		TicketsChannelID: cfg.Discord.TicketsChannelID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("app: reminder service: %w", err)
	}
	return svc, nil
}

func newTokenSource(cfg config.Config, awsCfg aws.Config, key string) (*paramstore.TokenSource, error) {
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: SSM client: %w", err)
	}
	tokens, err := paramstore.NewTokenSource(ps, paramstore.TokenName(cfg.ParamPrefix, key))
	if err != nil {
		return nil, fmt.Errorf("app: %s: %w", key, err)
	}
	return tokens, nil
}

package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type IntakeUseCase interface {
	Handle(ctx context.Context, in usecase.IntakeInput) (usecase.IntakeOutput, error)
}

type Handler struct {
	uc     IntakeUseCase
	logger *slog.Logger
}

type intakeResponse struct {
	ConversationID string              `json:"conversationId"`
	Replies        []usecase.Reply     `json:"replies"`
	Submissions    []domain.Submission `json:"submissions"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc IntakeUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

// Handle serves API Gateway proxy requests carrying one intake event.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return apiResponse(http.StatusBadRequest, correlationID, mustJSON(errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_base64"})), nil
		}
		body = decoded
	}

	status, payload := h.process(ctx, correlationID, body)
	return apiResponse(status, correlationID, payload), nil
}

// process runs one event through the use case and returns the status code
// and JSON body. Shared by the Lambda and HTTP entry points.
func (h *Handler) process(ctx context.Context, correlationID string, body []byte) (int, []byte) {
	logger := h.logger.With("correlation_id", correlationID)

	in, err := decodeEvent(body)
	if err != nil {
		logger.Warn("rejected intake event", "err", err)
		return http.StatusBadRequest, mustJSON(errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_event"})
	}

	out, err := h.uc.Handle(ctx, in)
	if err != nil {
		status, code, reason := mapError(err)
		logger.Error("intake failed", "status", status, "code", code, "reason", reason, "err", err)
		return status, mustJSON(errorResponse{Error: code, Reason: reason})
	}

	resp := intakeResponse{
		ConversationID: out.ConversationID,
		Replies:        out.Replies,
		Submissions:    out.Submissions,
	}
	if resp.Replies == nil {
		resp.Replies = []usecase.Reply{}
	}
	if resp.Submissions == nil {
		resp.Submissions = []domain.Submission{}
	}
	return http.StatusOK, mustJSON(resp)
}

func mapError(err error) (int, string, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ""
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(ucErr.Code), ucErr.Reason
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ucErr.Reason
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func apiResponse(status int, correlationID string, body []byte) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return b
}

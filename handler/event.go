package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/usecase"
)

const eventSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["conversationId", "author"],
  "properties": {
    "conversationId": {"type": "string", "minLength": 1},
    "parentChannelId": {"type": "string"},
    "messageId": {"type": "string"},
    "author": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "displayName": {"type": "string"},
        "bot": {"type": "boolean"}
      }
    },
    "text": {"type": "string"},
    "attachments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["filename", "url"],
        "properties": {
          "filename": {"type": "string", "minLength": 1},
          "url": {"type": "string", "minLength": 1},
          "contentType": {"type": "string"},
          "size": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var eventSchema = jsonschema.MustCompileString("intake-event.json", eventSchemaJSON)

type eventAuthor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Bot         bool   `json:"bot"`
}

type eventAttachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// intakeEvent is one chat message forwarded by the messaging bridge.
type intakeEvent struct {
	ConversationID  string            `json:"conversationId"`
	ParentChannelID string            `json:"parentChannelId"`
	MessageID       string            `json:"messageId"`
	Author          eventAuthor       `json:"author"`
	Text            string            `json:"text"`
	Attachments     []eventAttachment `json:"attachments"`
}

// decodeEvent validates body against the event schema and maps it onto the
// use case input.
func decodeEvent(body []byte) (usecase.IntakeInput, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return usecase.IntakeInput{}, fmt.Errorf("empty body")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return usecase.IntakeInput{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := eventSchema.Validate(doc); err != nil {
		return usecase.IntakeInput{}, fmt.Errorf("schema: %w", err)
	}

	var ev intakeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return usecase.IntakeInput{}, fmt.Errorf("invalid event: %w", err)
	}

	in := usecase.IntakeInput{
		ConversationID:  strings.TrimSpace(ev.ConversationID),
		ParentChannelID: ev.ParentChannelID,
		MessageID:       ev.MessageID,
		Author: usecase.Author{
			ID:          ev.Author.ID,
			Name:        ev.Author.Name,
			DisplayName: ev.Author.DisplayName,
			Bot:         ev.Author.Bot,
		},
		Text: ev.Text,
	}
	for _, a := range ev.Attachments {
		in.Attachments = append(in.Attachments, domain.Artifact{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}
	return in, nil
}

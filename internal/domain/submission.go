package domain

import "time"

// SourceFormat names the analytics source a participant declared.
type SourceFormat string

const (
	FormatTikTok    SourceFormat = "TikTok"
	FormatInstagram SourceFormat = "Instagram"
	FormatYouTube   SourceFormat = "YouTube"
)

// Valid reports whether f is one of the supported formats.
func (f SourceFormat) Valid() bool {
	switch f {
	case FormatTikTok, FormatInstagram, FormatYouTube:
		return true
	}
	return false
}

// RequiredArtifacts returns how many uploads complete a submission of this format.
func (f SourceFormat) RequiredArtifacts() int {
	switch f {
	case FormatInstagram:
		return 2
	case FormatTikTok, FormatYouTube:
		return 1
	}
	return 0
}

// Metrics is the extracted result of one completed submission.
type Metrics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// Submission is a completed, extracted submission handed to the record stores.
type Submission struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Submitter      string       `json:"submitter"`
	Format         SourceFormat `json:"format"`
	Metrics        Metrics      `json:"metrics"`
	SubmittedAt    time.Time    `json:"submittedAt"`
}

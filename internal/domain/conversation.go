package domain

// Artifact is a handle to an uploaded photo or file. The bytes behind URL are
// only downloaded when the submission is dispatched.
type Artifact struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// ConversationState tracks one in-progress submission.
type ConversationState struct {
	ConversationID string
	Format         SourceFormat
	Artifacts      []Artifact
}

// Clone returns a deep copy of s. A nil receiver yields nil.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(s.Artifacts))
		copy(out.Artifacts, s.Artifacts)
	}
	return &out
}

package usecase

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"analytics-intake/internal/domain"
)

const (
	replyAwaitingSecond = "Received photo %d/%d. Send the second photo."
	replyNeedCSV        = "Please send a CSV file for YouTube."
	replyAmbiguous      = "Could not reliably identify Instagram Views and Interactions screens. Processing failed."
	replyUnreadable     = "Could not read the uploaded file. Please start the submission again."
	replyPersistFailed  = "Failed to save analytics. Check logs."
)

var numberPrinter = message.NewPrinter(language.English)

func declaredReply(f domain.SourceFormat) string {
	switch f {
	case domain.FormatTikTok:
		return "Ready for TikTok analytics photo."
	case domain.FormatInstagram:
		return "Ready for two Instagram analytics photos."
	case domain.FormatYouTube:
		return "Ready for YouTube CSV file."
	}
	return fmt.Sprintf("Ready for %s analytics.", f)
}

// SavedReply is the summary sent once a submission has been stored.
func SavedReply(f domain.SourceFormat, m domain.Metrics) string {
	return numberPrinter.Sprintf("%s analytics processed and saved!\nPost Views: %d\nLikes: %d\nComments: %d\nShares: %d",
		f, m.Views, m.Likes, m.Comments, m.Shares)
}

package extract

import (
	"regexp"

	"analytics-intake/internal/domain"
)

var (
	tiktokViews         = regexp.MustCompile(`(?is)Post views.*?Profile views\s*\n\s*([\d.,]+[KM]?)`)
	tiktokLikesComments = regexp.MustCompile(`(?is)Likes.*?Comments\s*\n\s*([\d.,]+[KM]?)\s*([\d.,]+[KM]?)`)
	tiktokShares        = regexp.MustCompile(`(?is)Shares.*?\n\s*([\d.,]+[KM]?)`)
)

// TikTok extracts metrics from the OCR text of a single TikTok analytics
// screen. Each field falls back to 0 when its label is not found.
func TikTok(text string) domain.Metrics {
	var m domain.Metrics
	if g := tiktokViews.FindStringSubmatch(text); g != nil {
		m.Views = Normalize(g[1])
	}
	if g := tiktokLikesComments.FindStringSubmatch(text); g != nil {
		m.Likes = Normalize(g[1])
		m.Comments = Normalize(g[2])
	}
	if g := tiktokShares.FindStringSubmatch(text); g != nil {
		m.Shares = Normalize(g[1])
	}
	return m
}

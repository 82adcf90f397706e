package extract

import (
	"errors"
	"regexp"
	"strings"

	"analytics-intake/internal/domain"
)

// ErrAmbiguousInput is returned when two Instagram screens cannot be told apart.
var ErrAmbiguousInput = errors.New("extract: cannot identify instagram views and interactions screens")

var (
	igViewsLabelFirst  = regexp.MustCompile(`(?i)Views\s*\n*\s*(\d{3,})`)
	igViewsNumberFirst = regexp.MustCompile(`(?i)(\d{3,})\s*Views`)

	igLikes    = regexp.MustCompile(`(?i)Likes\s*(\d+)`)
	igComments = regexp.MustCompile(`(?i)Comments\s*(\d+)`)
	igShares   = regexp.MustCompile(`(?i)Shares\s*(\d+)`)

	igViewsAboveLabel = regexp.MustCompile(`(?i)(\d{4,})\s*\n\s*Views`)
	igViewsGrouped    = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s*Views`)
	igViewsBareLine   = regexp.MustCompile(`(?m)^\s*(\d{3,5})\s*$`)
)

// viewsTier finds the views count on the views screen, reporting whether it matched.
type viewsTier func(text string) (int, bool)

// viewsTiers are tried in order; the first match wins.
var viewsTiers = []viewsTier{
	viewsAboveLabel,
	viewsGroupedBeforeLabel,
	viewsBareLine,
}

// Instagram extracts metrics from the OCR text of the two Instagram insight
// screens, given in any order.
func Instagram(textA, textB string) (domain.Metrics, error) {
	views, interactions, err := classifyInstagram(textA, textB)
	if err != nil {
		return domain.Metrics{}, err
	}
	return domain.Metrics{
		Views:    instagramViews(views),
		Likes:    labelledNumber(igLikes, interactions),
		Comments: labelledNumber(igComments, interactions),
		Shares:   labelledNumber(igShares, interactions),
	}, nil
}

// classifyInstagram returns the views screen first and the interactions screen second.
func classifyInstagram(a, b string) (views, interactions string, err error) {
	aViews, bViews := hasViewsAnchor(a), hasViewsAnchor(b)
	switch {
	case aViews && !bViews:
		return a, b, nil
	case bViews && !aViews:
		return b, a, nil
	}

	aInteractions, bInteractions := looksLikeInteractions(a), looksLikeInteractions(b)
	switch {
	case aInteractions && !bInteractions:
		return b, a, nil
	case bInteractions && !aInteractions:
		return a, b, nil
	}
	return "", "", ErrAmbiguousInput
}

func hasViewsAnchor(text string) bool {
	return igViewsLabelFirst.MatchString(text) || igViewsNumberFirst.MatchString(text)
}

func looksLikeInteractions(text string) bool {
	return strings.Contains(text, "Likes") &&
		strings.Contains(text, "Comments") &&
		!strings.Contains(text, "Views")
}

func instagramViews(text string) int {
	for _, tier := range viewsTiers {
		if n, ok := tier(text); ok {
			return n
		}
	}
	return 0
}

func viewsAboveLabel(text string) (int, bool) {
	return firstGroup(igViewsAboveLabel, text)
}

func viewsGroupedBeforeLabel(text string) (int, bool) {
	return firstGroup(igViewsGrouped, text)
}

func viewsBareLine(text string) (int, bool) {
	return firstGroup(igViewsBareLine, text)
}

func labelledNumber(re *regexp.Regexp, text string) int {
	n, _ := firstGroup(re, text)
	return n
}

func firstGroup(re *regexp.Regexp, text string) (int, bool) {
	g := re.FindStringSubmatch(text)
	if g == nil {
		return 0, false
	}
	return Normalize(g[1]), true
}

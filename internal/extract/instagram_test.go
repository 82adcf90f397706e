package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"analytics-intake/internal/domain"
)

const (
	igViewsScreen        = "Overview\n2115\nViews\nFollowers 80%\n"
	igInteractionsScreen = "Interactions\nLikes 340\nComments 25\nShares 8\nSaves 3\n"
)

func TestInstagram_HappyPath(t *testing.T) {
	got, err := Instagram(igViewsScreen, igInteractionsScreen)
	require.NoError(t, err)
	require.Equal(t, domain.Metrics{Views: 2115, Likes: 340, Comments: 25, Shares: 8}, got)
}

func TestInstagram_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{igViewsScreen, igInteractionsScreen},
		{"Reel insights\n1,234 Views\n", igInteractionsScreen},
		{"Insights\n  987  \nReach\n", "Likes 10\nComments 2\nShares 1\n"},
	}
	for _, p := range pairs {
		ab, errAB := Instagram(p[0], p[1])
		ba, errBA := Instagram(p[1], p[0])
		require.NoError(t, errAB)
		require.NoError(t, errBA)
		require.Equal(t, ab, ba)
	}
}

func TestInstagram_ViewsTiers(t *testing.T) {
	cases := []struct {
		name  string
		views string
		want  int
	}{
		{name: "number above label", views: "Overview\n2115\nViews\n", want: 2115},
		{name: "grouped number before label", views: "Reel insights\n1,234 Views\n", want: 1234},
		{name: "bare line fallback", views: "Insights\n  987  \nReach\n", want: 987},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Instagram(tc.views, "Likes 10\nComments 2\nShares 1\n")
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Views)
			require.Equal(t, 10, got.Likes)
			require.Equal(t, 2, got.Comments)
			require.Equal(t, 1, got.Shares)
		})
	}
}

func TestInstagram_IndividualTiers(t *testing.T) {
	n, ok := viewsAboveLabel("5000\nViews")
	require.True(t, ok)
	require.Equal(t, 5000, n)

	_, ok = viewsAboveLabel("500\nViews")
	require.False(t, ok)

	n, ok = viewsGroupedBeforeLabel("12,345 Views")
	require.True(t, ok)
	require.Equal(t, 12345, n)

	n, ok = viewsBareLine("Top\n4321\n")
	require.True(t, ok)
	require.Equal(t, 4321, n)

	_, ok = viewsBareLine("Top\n12\n")
	require.False(t, ok)
}

func TestInstagram_LabelThenNewlineNumber(t *testing.T) {
	got, err := Instagram(igViewsScreen, "Likes\n340\nComments\n25\nShares\n8\n")
	require.NoError(t, err)
	require.Equal(t, domain.Metrics{Views: 2115, Likes: 340, Comments: 25, Shares: 8}, got)
}

func TestInstagram_MissingInteractionAnchorsDefaultToZero(t *testing.T) {
	got, err := Instagram(igViewsScreen, "Likes 340\nComments\n")
	require.NoError(t, err)
	require.Equal(t, domain.Metrics{Views: 2115, Likes: 340}, got)
}

func TestInstagram_FallbackBreaksTieWhenBothMentionViews(t *testing.T) {
	interactions := "2115\nviews\nLikes 3\nComments 4\nShares 5\n"
	views := "Views\n5000\n"
	got, err := Instagram(interactions, views)
	require.NoError(t, err)
	require.Equal(t, domain.Metrics{Views: 5000, Likes: 3, Comments: 4, Shares: 5}, got)
}

func TestInstagram_Ambiguous(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{name: "no anchors at all", a: "Hello world", b: "Nothing here"},
		{name: "two interactions screens", a: "Likes 1\nComments 2\n", b: "Likes 3\nComments 4\n"},
		{name: "empty", a: "", b: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Instagram(tc.a, tc.b)
			require.ErrorIs(t, err, ErrAmbiguousInput)
		})
	}
}

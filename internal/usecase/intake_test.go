package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/submission"
)

type mockDecoder struct {
	texts map[string]string
	rows  map[string][]map[string]string
	err   error
}

func (m *mockDecoder) Text(_ context.Context, a domain.Artifact) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.texts[a.URL], nil
}

func (m *mockDecoder) Rows(_ context.Context, a domain.Artifact) ([]map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[a.URL], nil
}

type mockRecorder struct {
	saved []domain.Submission
	err   error
}

func (m *mockRecorder) Record(_ context.Context, s domain.Submission) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

type failingMachine struct{ err error }

func (f failingMachine) Handle(context.Context, string, submission.Event) (submission.Result, error) {
	return submission.Result{}, f.err
}

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestIntake(t *testing.T, dec *mockDecoder, recorders []Recorder, opts ...IntakeOption) *IntakeService {
	t.Helper()
	m, err := submission.NewMachine(submission.NewMemoryStore(), dec)
	require.NoError(t, err)
	opts = append([]IntakeOption{withClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewIntakeService(m, recorders, opts...)
	require.NoError(t, err)
	return svc
}

func stubUUID(t *testing.T, id string) {
	t.Helper()
	orig := newUUID
	newUUID = func() string { return id }
	t.Cleanup(func() { newUUID = orig })
}

func member() Author {
	return Author{ID: "u1", Name: "mia_k", DisplayName: "Mia"}
}

func declare(text string) IntakeInput {
	return IntakeInput{ConversationID: "thread-1", Author: member(), Text: text}
}

func upload(files ...string) IntakeInput {
	in := IntakeInput{ConversationID: "thread-1", Author: member()}
	for _, f := range files {
		in.Attachments = append(in.Attachments, domain.Artifact{Filename: f, URL: "https://cdn.test/" + f})
	}
	return in
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewIntakeService_ValidatesDependencies(t *testing.T) {
	m, err := submission.NewMachine(submission.NewMemoryStore(), &mockDecoder{})
	require.NoError(t, err)

	_, err = NewIntakeService(nil, []Recorder{&mockRecorder{}})
	require.Error(t, err)
	_, err = NewIntakeService(m, nil)
	require.Error(t, err)
	_, err = NewIntakeService(m, []Recorder{nil})
	require.Error(t, err)
}

func TestIntake_TikTokHappyPath(t *testing.T) {
	stubUUID(t, "sub-1")
	rec := &mockRecorder{}
	dec := &mockDecoder{texts: map[string]string{
		"https://cdn.test/tt.png": "Post views ... Profile views\n12.3K\nLikes ... Comments\n450\t67\nShares\n12\n",
	}}
	svc := newTestIntake(t, dec, []Recorder{rec})
	ctx := context.Background()

	out, err := svc.Handle(ctx, declare("TikTok"))
	require.NoError(t, err)
	require.Equal(t, []Reply{{Text: "Ready for TikTok analytics photo."}}, out.Replies)

	out, err = svc.Handle(ctx, upload("tt.png"))
	require.NoError(t, err)
	require.Len(t, out.Submissions, 1)
	require.Equal(t, domain.Submission{
		ID:             "sub-1",
		ConversationID: "thread-1",
		Submitter:      "Mia",
		Format:         domain.FormatTikTok,
		Metrics:        domain.Metrics{Views: 12300, Likes: 450, Comments: 67, Shares: 12},
		SubmittedAt:    testNow,
	}, out.Submissions[0])
	require.Equal(t, []Reply{{Text: "TikTok analytics processed and saved!\nPost Views: 12,300\nLikes: 450\nComments: 67\nShares: 12"}}, out.Replies)
	require.Equal(t, out.Submissions, rec.saved)
}

func TestIntake_InstagramTwoPhotosInOneMessage(t *testing.T) {
	rec := &mockRecorder{}
	dec := &mockDecoder{texts: map[string]string{
		"https://cdn.test/interactions.png": "Likes 340\nComments 25\nShares 8\n",
		"https://cdn.test/overview.png":     "Overview\n2115\nViews\n",
	}}
	svc := newTestIntake(t, dec, []Recorder{rec})
	ctx := context.Background()

	out, err := svc.Handle(ctx, declare("instagram"))
	require.NoError(t, err)
	require.Equal(t, "Ready for two Instagram analytics photos.", out.Replies[0].Text)

	out, err = svc.Handle(ctx, upload("interactions.png", "overview.png"))
	require.NoError(t, err)
	require.Len(t, out.Replies, 2)
	require.Equal(t, "Received photo 1/2. Send the second photo.", out.Replies[0].Text)
	require.Contains(t, out.Replies[1].Text, "Instagram analytics processed and saved!")
	require.Contains(t, out.Replies[1].Text, "Post Views: 2,115")
	require.Len(t, rec.saved, 1)
	require.Equal(t, domain.Metrics{Views: 2115, Likes: 340, Comments: 25, Shares: 8}, rec.saved[0].Metrics)
}

func TestIntake_AmbiguousInstagramReply(t *testing.T) {
	rec := &mockRecorder{}
	dec := &mockDecoder{texts: map[string]string{
		"https://cdn.test/a.png": "blurry",
		"https://cdn.test/b.png": "also blurry",
	}}
	svc := newTestIntake(t, dec, []Recorder{rec})
	ctx := context.Background()

	_, err := svc.Handle(ctx, declare("insta"))
	require.NoError(t, err)
	out, err := svc.Handle(ctx, upload("a.png", "b.png"))
	require.NoError(t, err)
	require.Equal(t, Reply{Code: ErrorAmbiguousInput, Text: "Could not reliably identify Instagram Views and Interactions screens. Processing failed."}, out.Replies[1])
	require.Empty(t, out.Submissions)
	require.Empty(t, rec.saved)
}

func TestIntake_YouTubeNeedsCSV(t *testing.T) {
	rec := &mockRecorder{}
	dec := &mockDecoder{rows: map[string][]map[string]string{
		"https://cdn.test/Table data.csv": {
			{"Content": "Total", "Views": "1500", "Likes": "120", "Comments added": "30", "Shares": "9"},
		},
	}}
	svc := newTestIntake(t, dec, []Recorder{rec})
	ctx := context.Background()

	_, err := svc.Handle(ctx, declare("youtube"))
	require.NoError(t, err)

	out, err := svc.Handle(ctx, upload("screenshot.png"))
	require.NoError(t, err)
	require.Equal(t, []Reply{{Code: ErrorFormatMismatch, Text: "Please send a CSV file for YouTube."}}, out.Replies)

	out, err = svc.Handle(ctx, upload("Table data.csv"))
	require.NoError(t, err)
	require.Len(t, out.Submissions, 1)
	require.Equal(t, "YouTube analytics processed and saved!\nPost Views: 1,500\nLikes: 120\nComments: 30\nShares: 9", out.Replies[0].Text)
}

func TestIntake_UnreadableArtifact(t *testing.T) {
	svc := newTestIntake(t, &mockDecoder{err: errors.New("fetch: unexpected status 403")}, []Recorder{&mockRecorder{}})
	ctx := context.Background()

	_, err := svc.Handle(ctx, declare("tiktok"))
	require.NoError(t, err)
	out, err := svc.Handle(ctx, upload("tt.png"))
	require.NoError(t, err)
	require.Equal(t, []Reply{{Code: ErrorUnreadableArtifact, Text: "Could not read the uploaded file. Please start the submission again."}}, out.Replies)
}

func TestIntake_PersistFailure(t *testing.T) {
	first := &mockRecorder{}
	second := &mockRecorder{err: errors.New("notion: unexpected status 502")}
	svc := newTestIntake(t, &mockDecoder{texts: map[string]string{}}, []Recorder{first, second})
	ctx := context.Background()

	_, err := svc.Handle(ctx, declare("tiktok"))
	require.NoError(t, err)
	out, err := svc.Handle(ctx, upload("tt.png"))
	require.NoError(t, err)
	require.Equal(t, []Reply{{Code: ErrorPersistFailed, Text: "Failed to save analytics. Check logs."}}, out.Replies)
	require.Empty(t, out.Submissions)
	require.Len(t, first.saved, 1)
}

func TestIntake_SilentCases(t *testing.T) {
	rec := &mockRecorder{}
	svc := newTestIntake(t, &mockDecoder{}, []Recorder{rec}, WithTicketsChannel("tickets-1"))
	ctx := context.Background()

	bot := declare("tiktok")
	bot.ParentChannelID = "tickets-1"
	bot.Author.Bot = true
	out, err := svc.Handle(ctx, bot)
	require.NoError(t, err)
	require.Empty(t, out.Replies)

	elsewhere := declare("tiktok")
	elsewhere.ParentChannelID = "general"
	out, err = svc.Handle(ctx, elsewhere)
	require.NoError(t, err)
	require.Empty(t, out.Replies)

	early := upload("a.png")
	early.ParentChannelID = "tickets-1"
	out, err = svc.Handle(ctx, early)
	require.NoError(t, err)
	require.Empty(t, out.Replies)

	chatter := declare("thanks!")
	chatter.ParentChannelID = "tickets-1"
	out, err = svc.Handle(ctx, chatter)
	require.NoError(t, err)
	require.Empty(t, out.Replies)
	require.Equal(t, "thread-1", out.ConversationID)
}

func TestIntake_SubmitterFallsBackToName(t *testing.T) {
	rec := &mockRecorder{}
	svc := newTestIntake(t, &mockDecoder{texts: map[string]string{}}, []Recorder{rec})
	ctx := context.Background()

	in := declare("tiktok")
	in.Author.DisplayName = " "
	_, err := svc.Handle(ctx, in)
	require.NoError(t, err)

	up := upload("tt.png")
	up.Author.DisplayName = ""
	_, err = svc.Handle(ctx, up)
	require.NoError(t, err)
	require.Equal(t, "mia_k", rec.saved[0].Submitter)
	require.Equal(t, domain.Metrics{}, rec.saved[0].Metrics)
}

func TestIntake_ValidationErrors(t *testing.T) {
	svc := newTestIntake(t, &mockDecoder{}, []Recorder{&mockRecorder{}})

	_, err := svc.Handle(context.Background(), IntakeInput{Author: member(), Text: "tiktok"})
	expectUsecaseError(t, err, ErrorInvalidInput, "missing_conversation_id")

	_, err = svc.Handle(context.Background(), IntakeInput{ConversationID: "c", Text: "tiktok"})
	expectUsecaseError(t, err, ErrorInvalidInput, "missing_author")
}

func TestIntake_StateStoreFailure(t *testing.T) {
	svc, err := NewIntakeService(failingMachine{err: errors.New("submission: update state: throttled")}, []Recorder{&mockRecorder{}})
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), declare("tiktok"))
	expectUsecaseError(t, err, ErrorInternal, "state_update_error")
	require.ErrorContains(t, err, "throttled")
}

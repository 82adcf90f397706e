package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) Token(context.Context) (string, error) { return f.token, f.err }

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(fakeTokens{token: "bot-token"},
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestMessagesURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://discord.com/api/v10", "https://discord.com/api/v10/channels/42/messages"},
		{"https://discord.com/api/v10/", "https://discord.com/api/v10/channels/42/messages"},
		{"http://localhost:9000", "http://localhost:9000/api/v10/channels/42/messages"},
		{"", "https://discord.com/api/v10/channels/42/messages"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, messagesURL(tc.base, "42"), "base=%q", tc.base)
	}
}

func TestNewClient_NilTokens(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorContains(t, err, "nil")
}

func TestSendMessage_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v10/channels/42/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"content":"<@&7> hello","allowed_mentions":{"parse":["roles"]}}`, string(raw))
		_, _ = w.Write([]byte(`{"id":"msg-1","channel_id":"42"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv).SendMessage(context.Background(), "42", "<@&7> hello")
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
}

func TestSendMessage_Validation(t *testing.T) {
	c, err := NewClient(fakeTokens{token: "x"})
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), " ", "hi")
	require.ErrorContains(t, err, "channel id")
	_, err = c.SendMessage(context.Background(), "42", "")
	require.ErrorContains(t, err, "content")
}

func TestSendMessage_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Missing Access","code":50001}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).SendMessage(context.Background(), "42", "hi")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "Missing Access")
}

func TestSendMessage_TokenError(t *testing.T) {
	c, err := NewClient(fakeTokens{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), "42", "hi")
	require.ErrorContains(t, err, "ssm unavailable")
}

func TestSendMessage_NetworkError(t *testing.T) {
	c, err := NewClient(fakeTokens{token: "x"},
		WithBaseURL("http://127.0.0.1:1"),
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}),
	)
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), "42", "hi")
	require.ErrorContains(t, err, "request failed")
}

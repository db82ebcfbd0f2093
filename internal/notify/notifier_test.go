package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_KindFiltering(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{EventExecution, EventSystem}, discardLogger())

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, EventExecution, "exec", "body"))
	require.NoError(t, n.Notify(ctx, EventOpportunity, "opp", "body"))
	require.NoError(t, n.Notify(ctx, EventSystem, "sys", "body"))

	assert.Equal(t, []string{"exec", "sys"}, sender.titles)
}

func TestNotify_EmptyKindsAllowsEverything(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventLearning, "learn", "body"))
	assert.Equal(t, []string{"learn"}, sender.titles)
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{sender}, []string{EventExecution}, discardLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "startup", "engine online"))
	assert.Equal(t, []string{"startup"}, sender.titles)
}

func TestDispatch_FailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("rate limited")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventSystem, "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sender(s) failed")
	assert.Contains(t, err.Error(), "bad: rate limited")
	assert.Equal(t, []string{"title"}, good.titles, "healthy sender still delivers")
}

func TestNotifier_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	assert.NoError(t, n.Notify(context.Background(), EventSystem, "t", "m"))
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Execution success", "profit 42.00"))

	assert.Equal(t, "**Execution success**\nprofit 42.00", got["content"])
	assert.Equal(t, "discord", s.Name())
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad webhook", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTelegramSender_Name(t *testing.T) {
	assert.Equal(t, "telegram", NewTelegramSender("tok", "chat").Name())
}

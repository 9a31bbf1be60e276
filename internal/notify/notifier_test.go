package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	err    error
	alerts []Alert
}

func (r *recordingSender) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventOracleStale}, testLogger())

	_ = n.Notify(context.Background(), Alert{Event: EventOracleStale, Title: "stale"})
	_ = n.Notify(context.Background(), Alert{Event: EventArchiveFailed, Title: "archive"})

	if len(s.alerts) != 1 || s.alerts[0].Event != EventOracleStale {
		t.Fatalf("unexpected alerts: %+v", s.alerts)
	}
}

func TestNotifierContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), Alert{Event: EventOracleStale})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined sender error, got %v", err)
	}
	if len(good.alerts) != 1 {
		t.Error("second sender was skipped")
	}
}

func TestNotifierDisabled(t *testing.T) {
	var n *Notifier
	if n.Enabled() {
		t.Fatal("nil notifier reports enabled")
	}
	if err := n.Notify(context.Background(), Alert{}); err != nil {
		t.Fatalf("nil notifier returned %v", err)
	}
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	err := d.Send(context.Background(), Alert{
		Event:    EventOracleStale,
		Severity: SeverityCritical,
		Title:    "Oracle price stale",
		Message:  "sui/usd not updated for 5m",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "Oracle price stale" || e.Color != discordColors[SeverityCritical] {
		t.Errorf("unexpected embed: %+v", e)
	}
	if !strings.Contains(e.Footer.Text, EventOracleStale) {
		t.Errorf("footer = %q", e.Footer.Text)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ts := NewTelegramSender("TOKEN", "42")
	ts.apiBase = srv.URL

	err := ts.Send(context.Background(), Alert{Severity: SeverityInfo, Title: "Recovered <sui>", Message: "a & b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload: %v", got)
	}
	if !strings.Contains(got["text"], "<b>Recovered &lt;sui&gt;</b>") || !strings.Contains(got["text"], "a &amp; b") {
		t.Errorf("text not escaped: %q", got["text"])
	}
}

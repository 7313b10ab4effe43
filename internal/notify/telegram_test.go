package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestTelegramSend(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotChat = r.URL.Query().Get("chat_id")
		gotText = r.URL.Query().Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegram("secret-token", "vacradar_debug", zap.NewNop())
	n.apiURL = server.URL

	n.Send(context.Background(), "cycle complete")

	if gotPath != "/botsecret-token/sendMessage" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotChat != "@vacradar_debug" {
		t.Fatalf("unexpected chat id: %q", gotChat)
	}
	if gotText != "cycle complete" {
		t.Fatalf("unexpected text: %q", gotText)
	}
}

func TestTelegramSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewTelegram("token", "channel", zap.NewNop())
	n.apiURL = server.URL

	// Must not panic or surface anything on a rejected message.
	n.Send(context.Background(), "diagnostic")

	// Nor when the endpoint is unreachable.
	n.apiURL = "http://127.0.0.1:1"
	n.Send(context.Background(), "diagnostic")
}

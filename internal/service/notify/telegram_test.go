package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSend(t *testing.T) {
	var got map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BaseURL: srv.URL + "/", BotToken: "tok", ChatID: "42"}, nil)
	if err := tg.Send(context.Background(), "CONFIRMED SOLUSDT LONG"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path = %q", path)
	}
	if got["chat_id"] != "42" || got["text"] != "CONFIRMED SOLUSDT LONG" {
		t.Fatalf("body = %v", got)
	}
}

func TestTelegramSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	if err := NewTelegram(TelegramConfig{BaseURL: srv.URL, BotToken: "bad"}, nil).Send(context.Background(), "x"); err == nil {
		t.Fatalf("expected status error")
	}
	err := NewTelegram(TelegramConfig{BaseURL: srv.URL, BotToken: "ok"}, nil).Send(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

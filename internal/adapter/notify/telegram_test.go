package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newHTTPTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotReq telegramSendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(telegramSendResponse{OK: true})
	}))
	defer server.Close()

	s := &TelegramSender{
		token:   "test-token",
		baseURL: server.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  newHTTPTestLogger(),
	}

	if err := s.Send(context.Background(), "42", "✅ Job Completed: Daily Report"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.ChatID != "42" || !strings.Contains(gotReq.Text, "Daily Report") {
		t.Errorf("unexpected payload %+v", gotReq)
	}
}

func TestTelegramSendAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(telegramSendResponse{OK: false, Description: "chat not found"})
	}))
	defer server.Close()

	s := &TelegramSender{
		token:   "test-token",
		baseURL: server.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  newHTTPTestLogger(),
	}

	err := s.Send(context.Background(), "42", "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestTelegramSendHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	s := &TelegramSender{
		token:   "bad-token",
		baseURL: server.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  newHTTPTestLogger(),
	}

	err := s.Send(context.Background(), "42", "hi")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestWebexSend(t *testing.T) {
	var gotAuth string
	var gotReq webexSendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := &WebexSender{
		token:   "webex-token",
		baseURL: server.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  newHTTPTestLogger(),
	}

	if err := s.Send(context.Background(), "ops@example.com", "❌ Job Failed: Backup"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer webex-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.ToPersonEmail != "ops@example.com" {
		t.Errorf("unexpected recipient %+v", gotReq)
	}
}

func TestWebexSendHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid email"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	s := &WebexSender{
		token:   "webex-token",
		baseURL: server.URL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  newHTTPTestLogger(),
	}

	err := s.Send(context.Background(), "not-an-email", "hi")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

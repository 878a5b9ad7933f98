package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWebhookClient(url string, opts ...WebhookOption) *WebhookSMSClient {
	opts = append([]WebhookOption{WithRetry(2, time.Millisecond, 5*time.Millisecond)}, opts...)
	return NewWebhookSMSClient(url, opts...)
}

func TestWebhookSMSClient_Send_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method        string
		ContentType   string
		Authorization string
		Body          []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Authorization = r.Header.Get("Authorization")

		b, _ := ioReadAll(r)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc-123"}`))
	}))
	defer srv.Close()

	c := newTestWebhookClient(srv.URL, WithFrom("+15550000000"), WithAPIKey("k3y"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgID, err := c.SendSMS(ctx, "+15551234567", "hello")
	if err != nil {
		t.Fatalf("SendSMS() error: %v", err)
	}
	if msgID != "abc-123" {
		t.Fatalf("expected messageId %q, got %q", "abc-123", msgID)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}
	if captured.Authorization != "Bearer k3y" {
		t.Fatalf("expected bearer auth, got %q", captured.Authorization)
	}

	var req sendRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.PhoneNumber != "+15551234567" || req.Message != "hello" || req.From != "+15550000000" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestWebhookSMSClient_Send_Non202_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not accepted"))
	}))
	defer srv.Close()

	_, err := newTestWebhookClient(srv.URL).SendSMS(context.Background(), "+15551234567", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "unexpected status code: 200") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
	if !strings.Contains(msg, `body="not accepted"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestWebhookSMSClient_Send_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"retry-ok"}`))
	}))
	defer srv.Close()

	msgID, err := newTestWebhookClient(srv.URL).SendSMS(context.Background(), "+15551234567", "hi")
	if err != nil {
		t.Fatalf("SendSMS() error: %v", err)
	}
	if msgID != "retry-ok" {
		t.Fatalf("got %q", msgID)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestWebhookSMSClient_Send_ServerErrorAfterRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := newTestWebhookClient(srv.URL).SendSMS(context.Background(), "+15551234567", "hi")
	if err == nil || !strings.Contains(err.Error(), "unexpected status code: 502") {
		t.Fatalf("expected 502 error, got: %v", err)
	}
}

func TestWebhookSMSClient_Send_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	_, err := newTestWebhookClient(srv.URL).SendSMS(context.Background(), "+15551234567", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
	if !strings.Contains(msg, `body="THIS IS NOT JSON"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestWebhookSMSClient_Send_MissingMessageId_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted"}`))
	}))
	defer srv.Close()

	_, err := newTestWebhookClient(srv.URL).SendSMS(context.Background(), "+15551234567", "hi")
	if err == nil || !strings.Contains(err.Error(), "missing messageId") {
		t.Fatalf("expected missing messageId error, got: %v", err)
	}
}

func TestWebhookSMSClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestWebhookClient(srv.URL).SendSMS(ctx, "+15551234567", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "context") &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected context/deadline error, got: %v", err)
	}
}

func TestLogSMSClient(t *testing.T) {
	id, err := NewLogSMSClient("+15550000000").SendSMS(context.Background(), "+15551234567", "hi")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.HasPrefix(id, "log-sms-") {
		t.Fatalf("unexpected id %q", id)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

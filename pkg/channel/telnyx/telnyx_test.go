package telnyx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"dialpilot/pkg/bus"
	"dialpilot/pkg/config"
)

func inboundEvent(from string, text string) string {
	return `{
		"data": {
			"event_type": "message.received",
			"payload": {
				"direction": "inbound",
				"text": "` + text + `",
				"from": {"phone_number": "` + from + `"}
			}
		}
	}`
}

func testAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(config.TelnyxConfig{
		APIKey:  "key-test",
		Number:  "+15550002222",
		BaseURL: baseURL,
	}, nil)
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}

	return adapter
}

func TestNewAdapterRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(config.TelnyxConfig{Number: "+1555"}, nil); err == nil {
		t.Fatal("NewAdapter accepted missing API key, want error")
	}
	if _, err := NewAdapter(config.TelnyxConfig{APIKey: "key"}, nil); err == nil {
		t.Fatal("NewAdapter accepted missing number, want error")
	}
}

func TestHandleWebhookRejectsBadJSON(t *testing.T) {
	t.Parallel()

	adapter := testAdapter(t, "")
	handler := func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error) {
		t.Fatal("handler called for bad JSON")
		return bus.OutboundMessage{}, nil
	}

	req := httptest.NewRequest("POST", "/sms-handler", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	adapter.handleWebhook(context.Background(), handler)(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhookSkipsOtherEvents(t *testing.T) {
	t.Parallel()

	adapter := testAdapter(t, "")
	handler := func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error) {
		t.Fatal("handler called for non-message event")
		return bus.OutboundMessage{}, nil
	}

	payload := `{"data": {"event_type": "message.sent", "payload": {"direction": "outbound"}}}`
	req := httptest.NewRequest("POST", "/sms-handler", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	adapter.handleWebhook(context.Background(), handler)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q, want OK", rec.Body.String())
	}
}

func TestHandleWebhookSkipsOutboundDirection(t *testing.T) {
	t.Parallel()

	adapter := testAdapter(t, "")
	handler := func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error) {
		t.Fatal("handler called for outbound direction")
		return bus.OutboundMessage{}, nil
	}

	payload := `{"data": {"event_type": "message.received", "payload": {"direction": "outbound", "text": "x", "from": {"phone_number": "+1555"}}}}`
	req := httptest.NewRequest("POST", "/sms-handler", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	adapter.handleWebhook(context.Background(), handler)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleWebhookAnswersInboundMessage(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var sentBody sendMessageRequest
	var sentAuth string

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("send path = %q, want /messages", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		sentAuth = r.Header.Get("Authorization")
		_ = json.Unmarshal(body, &sentBody)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	adapter := testAdapter(t, api.URL)

	var captured bus.InboundMessage
	handler := func(_ context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
		captured = inbound
		return bus.OutboundMessage{Content: "We open at 8am."}, nil
	}

	req := httptest.NewRequest("POST", "/sms-handler", strings.NewReader(inboundEvent("+15551234567", "what are your hours?")))
	rec := httptest.NewRecorder()

	adapter.handleWebhook(context.Background(), handler)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.SenderID != "+15551234567" {
		t.Fatalf("inbound sender = %q", captured.SenderID)
	}
	if captured.Content != "what are your hours?" {
		t.Fatalf("inbound content = %q", captured.Content)
	}
	if captured.SessionKey != "sms:+15551234567" {
		t.Fatalf("session key = %q", captured.SessionKey)
	}

	mu.Lock()
	defer mu.Unlock()
	if sentBody.To != "+15551234567" {
		t.Fatalf("sent to = %q", sentBody.To)
	}
	if sentBody.From != "+15550002222" {
		t.Fatalf("sent from = %q", sentBody.From)
	}
	if sentBody.Text != "We open at 8am." {
		t.Fatalf("sent text = %q", sentBody.Text)
	}
	if sentAuth != "Bearer key-test" {
		t.Fatalf("authorization = %q", sentAuth)
	}
}

func TestHandleWebhookAcknowledgesMissingSender(t *testing.T) {
	t.Parallel()

	adapter := testAdapter(t, "")
	handler := func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error) {
		t.Fatal("handler called without sender")
		return bus.OutboundMessage{}, nil
	}

	payload := `{"data": {"event_type": "message.received", "payload": {"direction": "inbound", "text": "hi", "from": {"phone_number": ""}}}}`
	req := httptest.NewRequest("POST", "/sms-handler", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	adapter.handleWebhook(context.Background(), handler)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

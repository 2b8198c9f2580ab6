// Package telnyx serves the Telnyx messaging webhook and sends replies
// through the Telnyx v2 REST API.
package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dialpilot/pkg/bus"
	"dialpilot/pkg/channel"
	"dialpilot/pkg/config"
)

const (
	channelName = "telnyx"
	platformSMS = "SMS"

	defaultHost    = "0.0.0.0"
	defaultPort    = 8081
	defaultBaseURL = "https://api.telnyx.com/v2"

	eventMessageReceived = "message.received"
	directionInbound     = "inbound"
)

// webhookEnvelope is the subset of the Telnyx event payload we act on.
type webhookEnvelope struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			Direction string `json:"direction"`
			Text      string `json:"text"`
			From      struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"from"`
		} `json:"payload"`
	} `json:"data"`
}

type sendMessageRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// Adapter bridges Telnyx webhooks into the responder core.
type Adapter struct {
	cfg     config.TelnyxConfig
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewAdapter validates Telnyx configuration and constructs an adapter.
func NewAdapter(cfg config.TelnyxConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("channels.telnyx.api_key is required")
	}
	if strings.TrimSpace(cfg.Number) == "" {
		return nil, errors.New("channels.telnyx.number is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With("component", "channel.telnyx"),
	}, nil
}

// Name returns the channel identifier used in metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run serves the webhook endpoint until the context is cancelled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sms-handler", a.handleWebhook(ctx, handler))

	host := strings.TrimSpace(a.cfg.Host)
	if host == "" {
		host = defaultHost
	}
	port := a.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	server := &http.Server{
		Addr:              host + ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.log.Info("Telnyx webhook server started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve telnyx webhooks: %w", err)
	}

	return nil
}

// handleWebhook filters for inbound message events and answers them.
//
// Everything except a malformed payload is acknowledged with 200 so Telnyx
// does not retry-flood the process.
func (a *Adapter) handleWebhook(runCtx context.Context, handler channel.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var envelope webhookEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			a.log.Warn("Rejecting unparseable webhook payload", "error", err)
			http.Error(w, "bad JSON", http.StatusBadRequest)
			return
		}

		if envelope.Data.EventType != eventMessageReceived {
			a.log.Debug("Skipping event", "event_type", envelope.Data.EventType)
			a.acknowledge(w)
			return
		}
		if envelope.Data.Payload.Direction != directionInbound {
			a.log.Debug("Skipping non-inbound payload", "direction", envelope.Data.Payload.Direction)
			a.acknowledge(w)
			return
		}

		from := strings.TrimSpace(envelope.Data.Payload.From.PhoneNumber)
		text := strings.TrimSpace(envelope.Data.Payload.Text)
		if from == "" {
			a.log.Warn("Inbound message without sender number")
			a.acknowledge(w)
			return
		}

		a.log.Info("Received SMS", "from", from, "text_length", len(text))

		inbound := bus.InboundMessage{
			Platform:   platformSMS,
			SenderID:   from,
			ReplyTo:    from,
			Content:    text,
			SessionKey: "sms:" + from,
		}

		outbound, err := handler(runCtx, inbound)
		if err != nil {
			a.log.Error("Inbound SMS handling failed", "from", from, "error", err)
		}

		if reply := strings.TrimSpace(outbound.Content); reply != "" {
			a.sendSMS(runCtx, from, reply)
		}

		a.acknowledge(w)
	}
}

// sendSMS delivers one outbound message; failures are logged, not retried.
func (a *Adapter) sendSMS(ctx context.Context, to string, text string) {
	payload, err := json.Marshal(sendMessageRequest{
		From: a.cfg.Number,
		To:   to,
		Text: text,
	})
	if err != nil {
		a.log.Error("Failed to encode send request", "to", to, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		a.log.Error("Failed to build send request", "to", to, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Error("Failed to send SMS", "to", to, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		a.log.Error("Telnyx send rejected", "to", to, "status", resp.StatusCode, "body", string(body))
		return
	}

	a.log.Info("Sent SMS", "to", to, "text_length", len(text))
}

func (a *Adapter) acknowledge(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		a.log.Error("Failed to write acknowledgment", "error", err)
	}
}

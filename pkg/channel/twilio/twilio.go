// Package twilio serves the Twilio SMS and voice webhook surface and sends
// outbound notifications through the Twilio REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	twiliosdk "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"dialpilot/pkg/bus"
	"dialpilot/pkg/channel"
	"dialpilot/pkg/config"
)

const (
	channelName = "twilio"
	platformSMS = "SMS"

	defaultHost = "0.0.0.0"
	defaultPort = 8080

	missedCallText  = "Hey! Sorry we missed your call. How can we help you today?"
	callbackText    = "We noticed you called but didn't get through. Can we help?"
	holdText        = "Please hold while we connect your call."
	unavailableText = "Sorry, we're currently unavailable to take your call."
)

// Adapter bridges Twilio webhooks into the responder core.
type Adapter struct {
	cfg      config.TwilioConfig
	business config.BusinessConfig
	rest     *twiliosdk.RestClient
	log      *slog.Logger
}

// NewAdapter validates Twilio configuration and constructs an adapter.
func NewAdapter(cfg config.TwilioConfig, business config.BusinessConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("channels.twilio.account_sid and auth_token are required")
	}
	if strings.TrimSpace(cfg.Number) == "" {
		return nil, errors.New("channels.twilio.number is required")
	}

	if log == nil {
		log = slog.Default()
	}

	rest := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username: strings.TrimSpace(cfg.AccountSID),
		Password: strings.TrimSpace(cfg.AuthToken),
	})

	return &Adapter{
		cfg:      cfg,
		business: business,
		rest:     rest,
		log:      log.With("component", "channel.twilio"),
	}, nil
}

// Name returns the channel identifier used in metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run serves the webhook endpoints until the context is cancelled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sms-reply", a.handleSMS(ctx, handler))
	mux.HandleFunc("POST /voice", a.handleVoice)
	mux.HandleFunc("POST /missed-call", a.handleMissedCall)
	mux.HandleFunc("POST /call-status", a.handleCallStatus)
	mux.HandleFunc("POST /handle-recording", a.handleRecording)

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

	a.log.Info("Twilio webhook server started", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve twilio webhooks: %w", err)
	}

	return nil
}

// handleSMS answers an inbound SMS with TwiML carrying the resolved reply.
func (a *Adapter) handleSMS(runCtx context.Context, handler channel.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form payload", http.StatusBadRequest)
			return
		}

		from := strings.TrimSpace(r.PostFormValue("From"))
		body := strings.TrimSpace(r.PostFormValue("Body"))
		if from == "" {
			http.Error(w, "missing sender", http.StatusBadRequest)
			return
		}

		a.log.Info("Received SMS", "from", from, "body_length", len(body))

		inbound := bus.InboundMessage{
			Platform:   platformSMS,
			SenderID:   from,
			ReplyTo:    from,
			Content:    body,
			SessionKey: "sms:" + from,
			Metadata:   map[string]string{"message_sid": r.PostFormValue("MessageSid")},
		}

		outbound, err := handler(runCtx, inbound)
		if err != nil {
			// The dispatcher maps every failure to a fallback reply; an error
			// here means it could not even do that. Acknowledge anyway so the
			// provider does not retry-flood us.
			a.log.Error("Inbound SMS handling failed", "from", from, "error", err)
		}

		a.respondMessage(w, outbound.Content)
	}
}

// handleVoice puts the caller on hold and dials the forward number.
func (a *Adapter) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form payload", http.StatusBadRequest)
		return
	}

	verbs := []twiml.Element{&twiml.VoiceSay{Message: holdText}}

	if forwardTo := strings.TrimSpace(a.business.ForwardToNumber); forwardTo != "" {
		verbs = append(verbs, &twiml.VoiceDial{
			Action:  "/missed-call",
			Timeout: "20",
			InnerElements: []twiml.Element{
				&twiml.VoiceNumber{PhoneNumber: forwardTo},
			},
		})
	} else {
		verbs = append(verbs, &twiml.VoiceSay{Message: unavailableText})
	}

	document, err := twiml.Voice(verbs)
	a.respondTwiML(w, document, err)
}

// handleMissedCall texts the caller back when the dial attempt went nowhere.
func (a *Adapter) handleMissedCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form payload", http.StatusBadRequest)
		return
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	status := r.PostFormValue("DialCallStatus")
	if status == "" {
		status = r.PostFormValue("CallStatus")
	}

	if from != "" && missedStatus(status) {
		a.sendSMS(from, missedCallText)
	}

	document, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: "Thank you for calling. We'll text you shortly."},
	})
	a.respondTwiML(w, document, err)
}

// handleCallStatus texts back callers who hung up before connecting.
func (a *Adapter) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form payload", http.StatusBadRequest)
		return
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	if from != "" && missedStatus(r.PostFormValue("CallStatus")) {
		a.sendSMS(from, callbackText)
	}

	w.WriteHeader(http.StatusOK)
}

// handleRecording forwards a voicemail link to the owner's phone.
func (a *Adapter) handleRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form payload", http.StatusBadRequest)
		return
	}

	recordingURL := strings.TrimSpace(r.PostFormValue("RecordingUrl"))
	caller := strings.TrimSpace(r.PostFormValue("From"))
	owner := strings.TrimSpace(a.business.OwnerNumber)

	if recordingURL != "" && owner != "" {
		a.sendSMS(owner, fmt.Sprintf("Voicemail from %s: %s", caller, recordingURL))
	}

	w.WriteHeader(http.StatusOK)
}

// sendSMS delivers one outbound message; failures are logged, not retried.
func (a *Adapter) sendSMS(to string, body string) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(a.cfg.Number)
	params.SetBody(body)

	if _, err := a.rest.Api.CreateMessage(params); err != nil {
		a.log.Error("Failed to send SMS", "to", to, "error", err)
		return
	}

	a.log.Info("Sent SMS", "to", to, "body_length", len(body))
}

func (a *Adapter) respondMessage(w http.ResponseWriter, reply string) {
	document, err := twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: reply},
	})
	a.respondTwiML(w, document, err)
}

func (a *Adapter) respondTwiML(w http.ResponseWriter, document string, err error) {
	if err != nil {
		a.log.Error("Failed to render TwiML", "error", err)
		http.Error(w, "twiml rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(document)); err != nil {
		a.log.Error("Failed to write TwiML response", "error", err)
	}
}

// missedStatus reports whether a call outcome warrants a callback text.
func missedStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "busy", "no-answer", "failed", "canceled":
		return true
	default:
		return false
	}
}

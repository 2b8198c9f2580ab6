package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dialpilot/pkg/backend"
	"dialpilot/pkg/config"
	"dialpilot/pkg/identity"
	"dialpilot/pkg/transcript"
)

// SingleTurn answers every message independently from a business prompt
// template, with no conversation memory.
type SingleTurn struct {
	completer backend.Completer
	business  config.BusinessConfig
	sink      transcript.Sink
	log       *slog.Logger
}

// NewSingleTurn builds the stateless responder. The transcript sink may be
// nil when logging is disabled.
func NewSingleTurn(completer backend.Completer, business config.BusinessConfig, sink transcript.Sink, log *slog.Logger) *SingleTurn {
	if log == nil {
		log = slog.Default()
	}

	return &SingleTurn{
		completer: completer,
		business:  business,
		sink:      sink,
		log:       log.With("component", "session.oneshot"),
	}
}

func (s *SingleTurn) Reply(ctx context.Context, platform string, sender string, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}

	reply, err := s.completer.Complete(ctx, s.buildPrompt(text))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("completion returned empty reply")
	}

	s.record(ctx, identity.Normalize(platform, sender), text, reply)

	return reply, nil
}

func (s *SingleTurn) buildPrompt(userText string) string {
	var b strings.Builder
	b.WriteString("You are an assistant for a small service business. Use the info below to answer questions.\n")
	if s.business.Services != "" {
		fmt.Fprintf(&b, "- Services: %s\n", s.business.Services)
	}
	if s.business.ServiceArea != "" {
		fmt.Fprintf(&b, "- Area: %s\n", s.business.ServiceArea)
	}
	if s.business.BookingLink != "" {
		fmt.Fprintf(&b, "- Booking: send this link if asked to book: %s\n", s.business.BookingLink)
	}
	if s.business.Hours != "" {
		fmt.Fprintf(&b, "- Hours: %s\n", s.business.Hours)
	}
	fmt.Fprintf(&b, "\nCustomer says: %q\n", userText)

	return b.String()
}

func (s *SingleTurn) record(ctx context.Context, key identity.Key, userText string, replyText string) {
	if s.sink == nil {
		return
	}

	now := time.Now()
	for _, entry := range []transcript.Entry{
		{Platform: key.Platform(), Handle: key.Handle(), Timestamp: now, Role: transcript.RoleUser, Text: userText},
		{Platform: key.Platform(), Handle: key.Handle(), Timestamp: now, Role: transcript.RoleAssistant, Text: replyText},
	} {
		if err := s.sink.AppendTurn(ctx, entry); err != nil {
			s.log.Warn("Transcript write failed", "sender", string(key), "role", entry.Role, "error", err)
		}
	}
}

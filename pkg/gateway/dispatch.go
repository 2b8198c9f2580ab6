package gateway

import (
	"context"
	"errors"

	"dialpilot/pkg/bus"
	"dialpilot/pkg/session"
)

const (
	apologyReply       = "Sorry, something went wrong. We'll get back to you shortly."
	clarificationReply = "Sorry, we couldn't understand your message. Please try again."
)

// handleInbound produces a deliverable reply for every inbound message.
// Responder failures never surface to the channel adapters; they are
// replaced with a fixed fallback so a sender always gets an answer.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	outbound := bus.OutboundMessage{
		Platform:   inbound.Platform,
		ReplyTo:    inbound.ReplyTo,
		SessionKey: inbound.SessionKey,
	}

	reply, err := s.responder.Reply(ctx, inbound.Platform, inbound.SenderID, inbound.Content)
	switch {
	case err == nil:
		outbound.Content = reply
	case errors.Is(err, session.ErrEmptyInput):
		outbound.Content = clarificationReply
	default:
		s.logReplyFailure(inbound, err)
		outbound.Content = apologyReply
		outbound.Error = err.Error()
	}

	return outbound, nil
}

func (s *Service) logReplyFailure(inbound bus.InboundMessage, err error) {
	log := s.log.With(
		"platform", inbound.Platform,
		"sender_id", inbound.SenderID,
	)

	var genErr *session.GenerationError
	switch {
	case errors.As(err, &genErr):
		log.Warn("Generation run did not complete", "status", genErr.Status)
	case errors.Is(err, session.ErrRunTimedOut):
		log.Warn("Generation run timed out")
	case session.IsBackendUnavailable(err):
		log.Error("Generation backend unavailable", "error", err)
	default:
		log.Error("Failed to produce reply", "error", err)
	}
}

package channel

import (
	"context"

	"dialpilot/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external transport (Twilio, Telnyx, Telegram) into
// the responder core.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

package webhook

import (
	"context"
	"log"
	"runtime/debug"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
)

// ChannelIngestor handles channel posts.
type ChannelIngestor interface {
	HandleChannelPost(ctx context.Context, msg *telego.Message) error
}

// SessionHandler handles private-chat messages for the import session machine.
type SessionHandler interface {
	HandleMessage(ctx context.Context, msg *telego.Message) error
}

// Processor routes acknowledged updates to their handlers. It runs detached
// from the HTTP handler: the acknowledgement has already been sent, so every
// failure here is logged and captured, never surfaced to the sender.
type Processor struct {
	ingest   ChannelIngestor
	sessions SessionHandler
}

// NewProcessor creates an update processor.
func NewProcessor(ingest ChannelIngestor, sessions SessionHandler) *Processor {
	return &Processor{ingest: ingest, sessions: sessions}
}

// Process routes one update. Channel posts go to ingestion, private messages
// to the import session machine, everything else is ignored.
func (p *Processor) Process(ctx context.Context, update telego.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in update processing: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	switch {
	case update.ChannelPost != nil:
		if err := p.ingest.HandleChannelPost(ctx, update.ChannelPost); err != nil {
			log.Printf("[Webhook] Failed to process channel post %d: %v", update.ChannelPost.MessageID, err)
			sentry.CaptureException(err)
		}
	case update.Message != nil:
		msg := update.Message
		if msg.Chat.Type != telego.ChatTypePrivate {
			return
		}
		if err := p.sessions.HandleMessage(ctx, msg); err != nil {
			log.Printf("[Webhook] Failed to process private message %d: %v", msg.MessageID, err)
			sentry.CaptureException(err)
		}
	default:
		// Edits, callbacks and the rest of the update surface are not part of
		// the ingestion contract.
	}
}

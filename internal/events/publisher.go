package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// NATS subjects emitted after successful mutations. Downstream consumers
// (dashboard live refresh, export jobs) subscribe to these.
const (
	SubjectConversationSynced = "unifychats.conversation.synced"
	SubjectBookmarkToggled    = "unifychats.bookmark.toggled"
)

// ConversationSynced is published after each successful reconcile.
type ConversationSynced struct {
	OwnerID        string        `json:"owner_id"`
	ConversationID string        `json:"conversation_id"`
	Provider       chat.Provider `json:"provider"`
	ExternalID     string        `json:"external_id"`
	MessageCount   int           `json:"message_count"`
}

// BookmarkToggled is published after each bookmark toggle. The conversation
// is identified by natural key, the same addressing the toggle itself used.
type BookmarkToggled struct {
	OwnerID    string        `json:"owner_id"`
	Provider   chat.Provider `json:"provider"`
	ExternalID string        `json:"external_id"`
	Position   int           `json:"position"`
	Bookmarked bool          `json:"bookmarked"`
}

// Publisher is a thin NATS wrapper. A nil *Publisher is a no-op, so the
// server runs fine without a broker configured.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish serialises data and emits it on subject. Failures are logged and
// swallowed: event delivery never fails a sync.
func (p *Publisher) Publish(subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}

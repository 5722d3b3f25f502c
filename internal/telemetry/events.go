package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/rabbitmq"
)

const schemaVersion = 1

// Event routing keys. Consumers bind on chat.# or a specific key.
const (
	EventConversationCreated   = "chat.conversation.created"
	EventConversationDeleted   = "chat.conversation.deleted"
	EventConversationDissolved = "chat.conversation.dissolved"
	EventMemberAdded           = "chat.member.added"
	EventMemberRemoved         = "chat.member.removed"
	EventMemberLeft            = "chat.member.left"
	EventMemberPromoted        = "chat.member.promoted"
	EventMessageSent           = "chat.message.sent"
	EventMessageEdited         = "chat.message.edited"
	EventMessageDeleted        = "chat.message.deleted"
	EventMessagesSeen          = "chat.message.seen"
	EventAttachmentDeleted     = "chat.attachment.deleted"
)

type envelope struct {
	SchemaVersion  int            `json:"schema_version"`
	EventType      string         `json:"event_type"`
	OccurredAt     time.Time      `json:"occurred_at"`
	ConversationID int64          `json:"conversation_id"`
	ActorID        int64          `json:"actor_id"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Emitter fans chat events out to the message broker. Emission is fire and
// forget; a broker failure never fails the request that triggered it.
type Emitter struct {
	pub rabbitmq.Publisher
	log zerolog.Logger
}

func NewEmitter(pub rabbitmq.Publisher, log zerolog.Logger) *Emitter {
	return &Emitter{pub: pub, log: log.With().Str("component", "telemetry").Logger()}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, conversationID, actorID int64, payload map[string]any) {
	if e == nil || e.pub == nil {
		return
	}

	ev := envelope{
		SchemaVersion:  schemaVersion,
		EventType:      eventType,
		OccurredAt:     time.Now().UTC(),
		ConversationID: conversationID,
		ActorID:        actorID,
		Payload:        payload,
	}

	if err := e.pub.Publish(ctx, eventType, ev); err != nil {
		e.log.Warn().Err(err).Str("event_type", eventType).Msg("event emission failed")
	}
}

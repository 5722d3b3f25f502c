package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
)

func TestEmitPublishesVersionedEnvelope(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, EventMessageSent, mock.MatchedBy(func(ev any) bool {
		e, ok := ev.(envelope)
		return ok &&
			e.SchemaVersion == schemaVersion &&
			e.EventType == EventMessageSent &&
			e.ConversationID == 10 &&
			e.ActorID == 3 &&
			!e.OccurredAt.IsZero() &&
			e.Payload["message_id"] == int64(42)
	})).Return(nil)

	em := NewEmitter(pub, zerolog.Nop())
	em.Emit(context.Background(), EventMessageSent, 10, 3, map[string]any{"message_id": int64(42)})

	pub.AssertExpectations(t)
}

func TestEmitRoutingKeyIsEventType(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, EventMemberPromoted, mock.Anything).Return(nil)

	em := NewEmitter(pub, zerolog.Nop())
	em.Emit(context.Background(), EventMemberPromoted, 1, 2, map[string]any{"user_id": int64(4)})

	pub.AssertExpectations(t)
}

// A broker failure is logged and swallowed; emission never propagates errors
// into the request that triggered it.
func TestEmitSwallowsBrokerFailure(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, EventMessagesSeen, mock.Anything).Return(errors.New("broker down"))

	em := NewEmitter(pub, zerolog.Nop())
	em.Emit(context.Background(), EventMessagesSeen, 1, 2, nil)

	pub.AssertExpectations(t)
}

func TestEmitNilEmitterIsSafe(t *testing.T) {
	var em *Emitter
	em.Emit(context.Background(), EventMessageSent, 1, 1, nil)
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"course-content-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// AutoEventCreator persists and broadcasts an auto event.
type AutoEventCreator interface {
	CreateAutoEvent(ctx context.Context, courseID, message string) (*domain.FeedItem, error)
}

// Forwarder drains AutoEventTopic into the course feeds.
type Forwarder struct {
	subscriber message.Subscriber
	creator    AutoEventCreator
	topic      string
	log        zerolog.Logger
	done       chan struct{}
}

func NewForwarder(subscriber message.Subscriber, creator AutoEventCreator, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		subscriber: subscriber,
		creator:    creator,
		topic:      AutoEventTopic,
		log:        log.With().Str("component", "auto_event_forwarder").Logger(),
		done:       make(chan struct{}),
	}
}

// Start subscribes before returning, so events emitted afterwards are not
// lost. Consumption stops when ctx is cancelled or the subscriber closes.
func (f *Forwarder) Start(ctx context.Context) error {
	messages, err := f.subscriber.Subscribe(ctx, f.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", f.topic, err)
	}

	go func() {
		defer close(f.done)
		for msg := range messages {
			f.handle(ctx, msg)
		}
	}()
	return nil
}

// Done is closed once the consume loop has exited.
func (f *Forwarder) Done() <-chan struct{} {
	return f.done
}

func (f *Forwarder) handle(ctx context.Context, msg *message.Message) {
	var ev AutoEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		// Redelivery cannot fix a malformed payload.
		f.log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed auto event")
		msg.Ack()
		return
	}

	if _, err := f.creator.CreateAutoEvent(ctx, ev.CourseID, ev.Message); err != nil {
		if errors.Is(err, domain.ErrValidation) || ctx.Err() != nil {
			f.log.Warn().Err(err).Str("course_id", ev.CourseID).Msg("Dropping auto event")
			msg.Ack()
			return
		}
		f.log.Error().Err(err).Str("course_id", ev.CourseID).Msg("Failed to store auto event")
		msg.Nack()
		return
	}
	msg.Ack()
}

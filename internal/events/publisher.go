package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// AutoEventTopic carries system generated feed messages.
const AutoEventTopic = "feed.auto"

// AutoEvent is the payload of an AutoEventTopic message.
type AutoEvent struct {
	CourseID string `json:"courseId"`
	Message  string `json:"message"`
}

// NewInProcessBus returns an in-memory pub/sub. Messages published while
// nobody is subscribed are dropped.
func NewInProcessBus(log zerolog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewLoggerAdapter(log))
}

// Publisher implements app.AutoEventSink on top of a watermill publisher.
type Publisher struct {
	publisher message.Publisher
	topic     string
	log       zerolog.Logger
}

func NewPublisher(publisher message.Publisher, log zerolog.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		topic:     AutoEventTopic,
		log:       log.With().Str("component", "auto_event_publisher").Logger(),
	}
}

// Emit publishes message for courseID. Delivery is asynchronous.
func (p *Publisher) Emit(ctx context.Context, courseID, text string) error {
	payload, err := json.Marshal(AutoEvent{CourseID: courseID, Message: text})
	if err != nil {
		return fmt.Errorf("marshal auto event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("course_id", courseID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish auto event: %w", err)
	}

	p.log.Debug().Str("course_id", courseID).Str("message_uuid", msg.UUID).Msg("Published auto event")
	return nil
}

package app

import (
	"testing"

	"course-content-service/internal/domain"
)

func TestCourseChannelHandshakeAndPublish(t *testing.T) {
	c := NewCourseChannel("course-1", 4)

	ch, ok := c.subscribe()
	if !ok {
		t.Fatalf("subscribe on fresh channel failed")
	}
	if ev := <-ch; ev.Type != domain.FeedEventHello || ev.CourseID != "course-1" || !ev.OK {
		t.Fatalf("unexpected handshake: %+v", ev)
	}

	if dropped := c.publish(domain.FeedEvent{Type: domain.FeedEventDelete, ID: "x"}); dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if ev := <-ch; ev.Type != domain.FeedEventDelete || ev.ID != "x" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCourseChannelDropsFullSubscriber(t *testing.T) {
	c := NewCourseChannel("course-1", 1)

	ch, _ := c.subscribe() // buffer now holds the handshake
	if dropped := c.publish(domain.FeedEvent{Type: domain.FeedEventDelete, ID: "x"}); dropped != 1 {
		t.Fatalf("expected one drop, got %d", dropped)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty channel")
	}

	<-ch
	if _, open := <-ch; open {
		t.Fatalf("expected dropped subscriber channel closed")
	}

	// Unsubscribing an already dropped channel must not panic.
	c.unsubscribe(ch)
}

func TestCourseChannelRetire(t *testing.T) {
	c := NewCourseChannel("course-1", 0)
	if c.buffer != DefaultSubscriberBuffer {
		t.Fatalf("expected default buffer, got %d", c.buffer)
	}

	ch, _ := c.subscribe()
	if c.RetireIfEmpty() {
		t.Fatalf("channel with a subscriber must not retire")
	}

	c.unsubscribe(ch)
	if !c.IsEmpty() || !c.RetireIfEmpty() {
		t.Fatalf("expected empty channel to retire")
	}
	if _, ok := c.subscribe(); ok {
		t.Fatalf("retired channel accepted a subscriber")
	}
}

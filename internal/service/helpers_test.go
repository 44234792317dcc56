package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

type sentEvent struct {
	UserID    uuid.UUID
	Event     string
	Persisted bool
}

// recordingNotifier запоминает отправленные WebSocket события.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *recordingNotifier) BroadcastToUser(userID uuid.UUID, event string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{UserID: userID, Event: event, Persisted: true})
	return nil
}

func (n *recordingNotifier) Push(userID uuid.UUID, event string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{UserID: userID, Event: event})
	return nil
}

func (n *recordingNotifier) eventsFor(userID uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.sent {
		if e.UserID == userID {
			out = append(out, e.Event)
		}
	}
	return out
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func clientActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleClient}
}

func freelancerActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleFreelancer}
}

func adminActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleAdmin}
}

func strPtr(s string) *string { return &s }

// Package mqtest provides an in-process mq backend for tests.
package mqtest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/recipevault/apiserver/internal/mq"
)

// Memory is a mq.Backend that queues messages in process. A message whose
// handler fails is counted in Nacked and dropped.
type Memory struct {
	// PublishErr, when set, is returned by every Publish call.
	PublishErr error

	mu        sync.Mutex
	queues    map[string]chan mq.Message
	published []mq.Message
	nacked    int
	nextID    int
	closed    bool
}

func NewMemory() *Memory {
	return &Memory{queues: make(map[string]chan mq.Message)}
}

func (m *Memory) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return "", m.PublishErr
	}
	if m.closed {
		return "", errors.New("mqtest: backend closed")
	}
	m.nextID++
	msg := mq.Message{ID: strconv.Itoa(m.nextID), Data: data, Attributes: attrs}
	m.published = append(m.published, msg)
	select {
	case m.queue(channel) <- msg:
	default:
		return "", errors.New("mqtest: queue full")
	}
	return msg.ID, nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	m.mu.Lock()
	queue := m.queue(channel)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-queue:
			if err := handler(ctx, msg); err != nil {
				m.mu.Lock()
				m.nacked++
				m.mu.Unlock()
			}
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Published returns a copy of every message published so far.
func (m *Memory) Published() []mq.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mq.Message, len(m.published))
	copy(out, m.published)
	return out
}

// Nacked returns how many deliveries failed in a handler.
func (m *Memory) Nacked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacked
}

// Pending returns the number of queued, undelivered messages on channel.
func (m *Memory) Pending(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue(channel))
}

func (m *Memory) queue(channel string) chan mq.Message {
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan mq.Message, 128)
		m.queues[channel] = q
	}
	return q
}

// Package notify keeps the admin's contact-message feed and its unread
// count, fed by the /messages listing and a push channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

// Defaults for push events with missing fields.
const (
	DefaultSender  = "New Visitor"
	DefaultMessage = "New message received"
)

// API is the part of the dispatcher the feed uses.
type API interface {
	Get(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
	Delete(ctx context.Context, ep resource.Endpoint) (*models.Envelope, error)
}

// Feed holds messages newest first.
type Feed struct {
	api API
	log *zap.Logger
	now func() time.Time

	// OnMessage is called after a pushed message is added.
	OnMessage func(models.Message)

	mu       sync.RWMutex
	messages []models.Message
	unread   int
}

// NewFeed returns an empty feed.
func NewFeed(api API, log *zap.Logger) *Feed {
	return &Feed{api: api, log: log, now: time.Now}
}

// Fetch replaces the feed with the server listing. Both {"messages":[...]}
// and a bare list are accepted.
func (f *Feed) Fetch(ctx context.Context) error {
	env, err := f.api.Get(ctx, resource.At(resource.Messages))
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		f.log.Error("fetch messages", zap.Error(err))
		return err
	}
	msgs, err := decodeMessages(env.Data)
	if err != nil {
		return err
	}

	unread := 0
	for _, m := range msgs {
		if !m.Read {
			unread++
		}
	}
	f.mu.Lock()
	f.messages, f.unread = msgs, unread
	f.mu.Unlock()
	return nil
}

func decodeMessages(data json.RawMessage) ([]models.Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return []models.Message{}, nil
	}
	if data[0] == '[' {
		var list []models.Message
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		return list, nil
	}
	var wrapped models.MessageList
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if wrapped.Messages == nil {
		wrapped.Messages = []models.Message{}
	}
	return wrapped.Messages, nil
}

// Apply adds a pushed new-message event as an unread message at the top.
func (f *Feed) Apply(ev models.NewMessageEvent) models.Message {
	now := f.now()
	msg := models.Message{
		ID:      ev.ID,
		Name:    ev.SenderName,
		Email:   ev.SenderEmail,
		Message: ev.Message,
		Date:    now.UTC().Format(time.RFC3339),
	}
	if msg.ID == "" {
		msg.ID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	if msg.Name == "" {
		msg.Name = DefaultSender
	}
	if msg.Message == "" {
		msg.Message = DefaultMessage
	}

	f.mu.Lock()
	f.messages = append([]models.Message{msg}, f.messages...)
	f.unread++
	f.mu.Unlock()

	f.log.Info("new message", zap.String("id", msg.ID), zap.String("from", msg.Name))
	if f.OnMessage != nil {
		f.OnMessage(msg)
	}
	return msg
}

// MarkRead flags one message as read. It is local only.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID != id {
			continue
		}
		if !f.messages[i].Read {
			f.messages[i].Read = true
			f.decUnread()
		}
		return true
	}
	return false
}

// MarkAllRead flags every message as read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		f.messages[i].Read = true
	}
	f.unread = 0
}

// Delete removes a message on the server and then from the feed.
func (f *Feed) Delete(ctx context.Context, id string) error {
	env, err := f.api.Delete(ctx, resource.Record(resource.Messages, id))
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		f.log.Error("delete message", zap.String("id", id), zap.Error(err))
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID != id {
			continue
		}
		if !m.Read {
			f.decUnread()
		}
		f.messages = append(f.messages[:i:i], f.messages[i+1:]...)
		break
	}
	return nil
}

func (f *Feed) decUnread() {
	if f.unread > 0 {
		f.unread--
	}
}

// Messages returns a copy of the feed, newest first.
func (f *Feed) Messages() []models.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Unread returns the unread count.
func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Listen applies every event ch delivers until ctx is done.
func (f *Feed) Listen(ctx context.Context, ch Channel) error {
	return ch.Run(ctx, func(ev models.NewMessageEvent) { f.Apply(ev) })
}

// Package transcript holds the ordered, append-only message log of a chat
// session.
package transcript

import (
	"fmt"
	"iter"
	"sync"
	"time"
)

// Draft is a message before it is appended; the transcript assigns identity.
type Draft struct {
	Sender    Sender
	Content   string
	CreatedAt time.Time
	Card      Card
}

func Text(sender Sender, content string) Draft {
	return Draft{Sender: sender, Content: content}
}

func WithCard(sender Sender, content string, card Card) Draft {
	return Draft{Sender: sender, Content: content, Card: card}
}

type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	updated  chan struct{}
	now      func() time.Time
}

func New(now func() time.Time) *Transcript {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Transcript{
		updated: make(chan struct{}),
		now:     now,
	}
}

// Append is the only mutation. The message index doubles as its identity, so
// ids stay unique even when several messages share a timestamp.
func (t *Transcript) Append(draft Draft) Message {
	t.mu.Lock()
	index := len(t.messages)
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = t.now()
	}
	kind := KindText
	if draft.Card != nil {
		kind = KindCard
	}
	message := Message{
		ID:        fmt.Sprintf("msg-%d", index+1),
		Index:     index,
		Sender:    draft.Sender,
		Content:   draft.Content,
		CreatedAt: createdAt,
		Kind:      kind,
		Card:      draft.Card,
	}
	t.messages = append(t.messages, message)
	closed := t.updated
	t.updated = make(chan struct{})
	t.mu.Unlock()

	close(closed)
	return message
}

// All yields the messages present when iteration starts.
func (t *Transcript) All() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, message := range t.snapshot(0) {
			if !yield(message) {
				return
			}
		}
	}
}

// Since returns the messages with Index >= index.
func (t *Transcript) Since(index int) []Message {
	return t.snapshot(index)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Updated returns a channel closed by the next Append.
func (t *Transcript) Updated() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}

func (t *Transcript) snapshot(from int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(t.messages) {
		return nil
	}
	out := make([]Message, len(t.messages)-from)
	copy(out, t.messages[from:])
	return out
}

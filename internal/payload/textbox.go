package payload

import (
	"context"
	"sync"
)

// TextBox holds the most recent raw payload text. Writers replace the whole
// content; readers see a full snapshot.
type TextBox struct {
	mu      sync.RWMutex
	text    string
	changed chan struct{}
}

// NewTextBox returns an empty box.
func NewTextBox() *TextBox {
	return &TextBox{changed: make(chan struct{}, 1)}
}

// Text returns the current content.
func (b *TextBox) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Set replaces the content and signals Changed. Signals coalesce while
// nobody is reading.
func (b *TextBox) Set(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Changed fires after Set. It is meant for a single consumer.
func (b *TextBox) Changed() <-chan struct{} {
	return b.changed
}

// Publish implements Sink.
func (b *TextBox) Publish(_ context.Context, raw string) error {
	b.Set(raw)
	return nil
}

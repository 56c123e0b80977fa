package download

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PromptRequest is a pending choice waiting for the UI
type PromptRequest struct {
	ID      string
	Title   string
	Message string
	Options []string

	reply chan promptReply
}

type promptReply struct {
	index int
	ok    bool
}

// PromptChooser turns a modal choice into a request/response rendezvous.
// Choose posts a PromptRequest on Requests and suspends until the UI calls
// Answer or Dismiss with the request's ID.
type PromptChooser struct {
	requests chan *PromptRequest
	mu       sync.Mutex
	pending  map[string]*PromptRequest
}

// NewPromptChooser creates a chooser whose request channel holds buffer items
func NewPromptChooser(buffer int) *PromptChooser {
	return &PromptChooser{
		requests: make(chan *PromptRequest, buffer),
		pending:  make(map[string]*PromptRequest),
	}
}

// Requests is consumed by the UI
func (c *PromptChooser) Requests() <-chan *PromptRequest {
	return c.requests
}

// Choose implements Chooser
func (c *PromptChooser) Choose(ctx context.Context, title, message string, options []string) (int, bool, error) {
	req := &PromptRequest{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
		Options: append([]string(nil), options...),
		reply:   make(chan promptReply, 1),
	}

	c.mu.Lock()
	c.pending[req.ID] = req
	c.mu.Unlock()
	defer c.forget(req.ID)

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.index, r.ok, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Answer resolves the prompt with the option at index
func (c *PromptChooser) Answer(id string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[id]
	if !ok {
		return fmt.Errorf("no pending prompt %s", id)
	}
	if index < 0 || index >= len(req.Options) {
		return fmt.Errorf("option %d out of range [0,%d)", index, len(req.Options))
	}
	delete(c.pending, id)
	req.reply <- promptReply{index: index, ok: true}
	return nil
}

// Dismiss resolves the prompt as cancelled
func (c *PromptChooser) Dismiss(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[id]
	if !ok {
		return fmt.Errorf("no pending prompt %s", id)
	}
	delete(c.pending, id)
	req.reply <- promptReply{}
	return nil
}

// Pending returns the number of unanswered prompts
func (c *PromptChooser) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *PromptChooser) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

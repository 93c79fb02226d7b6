// Package queuetest provides an in-memory queue.Publisher that records
// published messages.
package queuetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/beacon/queue"
)

// Recorder records every published message. Fail, when set, decides per
// message whether publishing fails.
type Recorder struct {
	mu       sync.Mutex
	messages []queue.Message
	seq      int

	Fail func(msg queue.Message) error
}

var _ queue.Publisher = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{} }

// Publish records msg unless Fail rejects it.
func (r *Recorder) Publish(_ context.Context, msg queue.Message) (queue.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		if err := r.Fail(msg); err != nil {
			return queue.Receipt{}, err
		}
	}
	r.seq++
	r.messages = append(r.messages, msg)
	return queue.Receipt{MessageID: fmt.Sprintf("msg_%d", r.seq)}, nil
}

// Messages returns a copy of the recorded messages in publish order.
func (r *Recorder) Messages() []queue.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Message(nil), r.messages...)
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// ByURL returns the recorded messages addressed to url.
func (r *Recorder) ByURL(url string) []queue.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queue.Message
	for _, m := range r.messages {
		if m.URL == url {
			out = append(out, m)
		}
	}
	return out
}

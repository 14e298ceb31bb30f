// Package chattest records replies sent through chat.Responder.
package chattest

import (
	"context"
	"strings"
	"sync"

	"github.com/m3rciful/docshelf/app/chat"
)

// Answer is a recorded AnswerCheckout call.
type Answer struct {
	OK     bool
	Reason string
}

// Recorder implements chat.Responder in memory.
type Recorder struct {
	mu        sync.Mutex
	Messages  []chat.Message
	Documents []string
	Invoices  []chat.Invoice
	Callbacks []string
	Checkouts []Answer

	// Err, when set, is returned by every call.
	Err error
}

var _ chat.Responder = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
	return r.Err
}

func (r *Recorder) SendDocument(_ context.Context, fileRef, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Documents = append(r.Documents, fileRef)
	return r.Err
}

func (r *Recorder) SendInvoice(_ context.Context, inv chat.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Invoices = append(r.Invoices, inv)
	return r.Err
}

func (r *Recorder) AnswerCallback(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Callbacks = append(r.Callbacks, text)
	return r.Err
}

func (r *Recorder) AnswerCheckout(_ context.Context, ok bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Checkouts = append(r.Checkouts, Answer{OK: ok, Reason: reason})
	return r.Err
}

// Texts returns the text of every recorded message.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = m.Text
	}
	return out
}

// Last returns the last recorded message, or a zero Message.
func (r *Recorder) Last() chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return chat.Message{}
	}
	return r.Messages[len(r.Messages)-1]
}

// Contains reports whether any message contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, t := range r.Texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = nil
	r.Documents = nil
	r.Invoices = nil
	r.Callbacks = nil
	r.Checkouts = nil
}

package correction

import (
	"context"
	"sync"
)

// fakeBackend returns scripted responses in order, repeating the last one.
type fakeBackend struct {
	name string

	mu      sync.Mutex
	replies []fakeReply
	calls   int
	prompts []string
}

type fakeReply struct {
	raw string
	err error
	// block waits for ctx cancellation before replying.
	block bool
}

func newFake(name string, replies ...fakeReply) *fakeBackend {
	return &fakeBackend{name: name, replies: replies}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.raw, r.err
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const validRaw = `{"is_correct":false,"corrected_sentence":"He goes to school","explanation":"subject-verb agreement","categories":["Grammar"]}`

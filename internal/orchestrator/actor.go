package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

const mailboxSize = 16

// actors serializes work per session id. A mailbox goroutine exists only
// while its session has pending jobs; different sessions never share a lock
// beyond the short registry lookup.
type actors struct {
	mu    sync.Mutex
	boxes map[string]*mailbox
}

type mailbox struct {
	jobs    chan func()
	pending int
}

func newActors() *actors {
	return &actors{boxes: make(map[string]*mailbox)}
}

// do runs fn on the mailbox of id and waits for it. fn must not call do for
// the same id.
func (a *actors) do(ctx context.Context, id string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("session %s: panic: %v", id, r)
			}
		}()
		done <- fn()
	}

	a.mu.Lock()
	box, ok := a.boxes[id]
	if !ok {
		box = &mailbox{jobs: make(chan func(), mailboxSize)}
		a.boxes[id] = box
		go a.run(id, box)
	}
	box.pending++
	a.mu.Unlock()

	box.jobs <- job

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *actors) run(id string, box *mailbox) {
	for job := range box.jobs {
		job()

		a.mu.Lock()
		box.pending--
		if box.pending == 0 {
			delete(a.boxes, id)
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
	}
}

func (a *actors) active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.boxes)
}

package editor

import (
	"context"
	"sync"
)

// Editor holds at most one open session. Loading another design closes the
// current one first, so its pending autosave and room subscription never
// leak into the next document.
type Editor struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// NewEditor keeps opts as the template for every session; DesignID is ignored
func NewEditor(opts Options) *Editor {
	return &Editor{opts: opts}
}

// Load closes the current session and opens designID
func (e *Editor) Load(ctx context.Context, designID string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.current.Close()
		e.current = nil
	}

	opts := e.opts
	opts.DesignID = designID
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	e.current = s
	return s, nil
}

// Current returns the open session, or nil
func (e *Editor) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Close closes the open session, if any
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil
	}
	err := e.current.Close()
	e.current = nil
	return err
}

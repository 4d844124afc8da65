package ai

import (
	"context"
	"strings"
)

// Stream delivers generated text fragments to a single consumer in arrival
// order. C is unbuffered and is closed when generation completes, fails, or
// the context passed to NewStream is cancelled. A consumer that stops
// reading must cancel that context so the producer can exit.
type Stream struct {
	C <-chan string

	done chan struct{}
	err  error
}

// NewStream runs produce in its own goroutine. emit blocks until the
// consumer takes the fragment and returns false once ctx is done, at which
// point produce should return.
func NewStream(ctx context.Context, produce func(ctx context.Context, emit func(string) bool) error) *Stream {
	ch := make(chan string)
	s := &Stream{C: ch, done: make(chan struct{})}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		defer close(s.done)
		defer close(ch)

		emit := func(fragment string) bool {
			select {
			case ch <- fragment:
				return true
			case <-ctx.Done():
				return false
			}
		}
		err := produce(ctx, emit)
		if err == nil {
			err = ctx.Err()
		}
		s.err = err
	}()
	return s
}

// Err waits for the stream to close and returns its terminal error.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Collect drains the stream and returns the concatenated text.
func Collect(s *Stream) (string, error) {
	var b strings.Builder
	for frag := range s.C {
		b.WriteString(frag)
	}
	return b.String(), s.Err()
}

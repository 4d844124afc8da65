package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStream_DeliversInOrder(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for _, f := range []string{"a", "b", "c"} {
			if !emit(f) {
				return ctx.Err()
			}
		}
		return nil
	})

	var got []string
	for f := range s.C {
		got = append(got, f)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Expected [a b c], got %v", got)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestStream_ProducerError(t *testing.T) {
	boom := errors.New("quota exceeded")
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		emit("partial")
		return boom
	})

	text, err := Collect(s)
	if text != "partial" {
		t.Errorf("Expected partial text, got %q", text)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected producer error, got %v", err)
	}
}

func TestStream_CancelAbandonsProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})

	s := NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		defer close(exited)
		for {
			if !emit("tick") {
				return ctx.Err()
			}
		}
	})

	<-s.C
	cancel()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not exit after cancellation")
	}
	for range s.C {
	}
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", s.Err())
	}
}

func TestStream_UnbufferedHandoff(t *testing.T) {
	sent := make(chan struct{}, 10)
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for i := 0; i < 3; i++ {
			if !emit("x") {
				return ctx.Err()
			}
			sent <- struct{}{}
		}
		return nil
	})

	// Nothing is accepted until the consumer reads.
	select {
	case <-sent:
		t.Fatal("producer advanced without a reader")
	case <-time.After(50 * time.Millisecond):
	}

	<-s.C
	<-sent
	if _, err := Collect(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

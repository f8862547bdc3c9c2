package scripted

import (
	"context"
	"errors"
	"testing"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
)

func TestScripted_ServesInOrderThenExhausts(t *testing.T) {
	s := New("one", "two")
	ctx := context.Background()
	for _, want := range []string{"one", "two"} {
		res, err := s.Generate(ctx, []llm.Message{llm.User("q")})
		if err != nil || res.Text != want {
			t.Fatalf("got %q err=%v want %q", res.Text, err, want)
		}
	}
	if _, err := s.Generate(ctx, nil); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if got := s.Prompts(); len(got) != 2 || got[0] != "q" {
		t.Fatalf("prompts=%v", got)
	}
}

func TestScripted_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("x").Generate(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFactory_RegisteredAndCycling(t *testing.T) {
	m, err := llm.New(context.Background(), "scripted", llm.Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := m.Generate(context.Background(), nil)
		if err != nil || res.Text != `{"tool_use": false}` {
			t.Fatalf("reply %d: %q err=%v", i, res.Text, err)
		}
	}
	if _, err := llm.New(context.Background(), "nope", llm.Config{}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

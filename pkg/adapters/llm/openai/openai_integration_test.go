//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
)

func TestOpenAIChatGenerate(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	ctx := context.Background()
	m, err := Factory(ctx, llm.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	res, err := m.Generate(ctx, []llm.Message{llm.User("Say 'pong'")})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "" {
		t.Fatalf("empty response text")
	}
}

func TestGroqChatGenerate(t *testing.T) {
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
	ctx := context.Background()
	m, err := Factory(ctx, llm.Config{
		APIKey:  os.Getenv("GROQ_API_KEY"),
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama3-8b-8192",
		JSON:    true,
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	res, err := m.Generate(ctx, []llm.Message{llm.User(`Reply with exactly {"tool_use": false}`)})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "" {
		t.Fatalf("empty response text")
	}
}

package errmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewAndFrom(t *testing.T) {
	e := Validation("missing", "field missing", map[string]any{"field": "b"})
	if e.Category != CategoryValidation || e.Code != "missing" {
		t.Fatalf("unexpected: %#v", e)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
	wrapped := fmt.Errorf("outer: %w", e)
	if got := From(wrapped); got != e {
		t.Fatalf("From should unwrap to the compact error")
	}
	if got := From(errors.New("boom")); got.Category != CategorySystem || got.Code != "internal" {
		t.Fatalf("plain error mapped to %+v", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation(CodeNotFound, "x", nil), 404},
		{Validation(CodeBadJSON, "x", nil), 400},
		{Validation(CodeInvalidArguments, "x", nil), 400},
		{System(CodeCatalogUnavailable, "x", nil, nil), 500},
		{Tool(CodeToolFailed, "x", nil, nil), 502},
		{Network(CodeDiscoveryFailed, "x", nil, nil), 502},
		{Policy("method_not_allowed", "x", nil), 405},
		{nil, 500},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v)=%d want %d", c.err, got, c.want)
		}
	}
}

func TestWriteHTTP_StatusAndEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/add", nil)
	WriteHTTP(rr, req, Validation(CodeBadJSON, "oops", nil))
	if rr.Code != 400 {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "\"category\":\"validation\"") {
		t.Fatalf("body missing category: %s", body)
	}
	if !strings.Contains(body, "\"code\":\"bad_json\"") {
		t.Fatalf("body missing code: %s", body)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error == nil || env.Error.Message != "oops" {
		t.Fatalf("envelope=%+v", env)
	}
}

func TestCausesAndTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	e := Network(CodeInvocationFailed, long, map[string]any{"status": 503, "body": long}, errors.New("dial tcp: refused"))
	if len(e.Message) != 512 || !strings.HasSuffix(e.Message, "...") {
		t.Fatalf("message not truncated: len=%d", len(e.Message))
	}
	if len(e.Causes) != 1 || e.Causes[0].Message != "dial tcp: refused" {
		t.Fatalf("causes=%+v", e.Causes)
	}
	if e.Context["status"] != 503 {
		t.Fatalf("status context=%v", e.Context["status"])
	}
	if s, _ := e.Context["body"].(string); len(s) != 256 {
		t.Fatalf("body context len=%d", len(s))
	}
	if !IsCategory(e, CategoryNetwork) || !IsCode(e, CodeInvocationFailed) {
		t.Fatal("category/code helpers disagree")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	e := Model(CodeDecisionFailed, "decision maker failed", nil, context.DeadlineExceeded)
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if errors.Unwrap(Validation(CodeBadJSON, "x", nil)) != nil {
		t.Fatal("validation error without cause unwrapped to something")
	}
}

func TestDecode(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteHTTP(rr, nil, Validation(CodeNotFound, "Not found", map[string]any{"path": "/x"}))
	env, ok := Decode(rr.Body.Bytes())
	if !ok || env.Error.Code != CodeNotFound || env.Error.Context["path"] != "/x" {
		t.Fatalf("env=%+v ok=%v", env, ok)
	}
	for _, body := range []string{`{"error": "plain"}`, `not json`, `{}`} {
		if _, ok := Decode([]byte(body)); ok {
			t.Fatalf("decoded %q as envelope", body)
		}
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("é", 10) // 20 bytes
	got := truncate(s, 8)
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "...") || len(got) > 8 {
		t.Fatalf("truncate=%q", got)
	}
}

package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"time"
)

// Prompt is one saved version of a named template.
type Prompt struct {
	Name     string
	Version  int
	Body     string
	Checksum string
	SavedAt  time.Time
	Meta     map[string]string
}

// Issue describes a lint finding. Offset is a byte offset into the text.
type Issue struct {
	Rule    string
	Message string
	Offset  int
}

// ErrLintFailed matches every *LintError.
var ErrLintFailed = errors.New("prompt failed lint checks")

// LintError rejects a template with the issues found.
type LintError struct {
	Name   string
	Issues []Issue
}

func (e *LintError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Rule + ": " + is.Message
	}
	return fmt.Sprintf("prompt %q failed lint checks: %s", e.Name, strings.Join(msgs, "; "))
}

func (e *LintError) Is(target error) bool { return target == ErrLintFailed }

// Lint checks that a template is named, non-empty, parses, and carries no
// secret-like text.
func Lint(p Prompt) []Issue {
	var issues []Issue
	if p.Name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if strings.TrimSpace(p.Body) == "" {
		issues = append(issues, Issue{Rule: "body.required", Message: "body is empty"})
	} else if _, err := parse(p.Name, p.Body); err != nil {
		issues = append(issues, Issue{Rule: "template.parse", Message: err.Error()})
	}
	return append(issues, LintText(p.Body)...)
}

var secretLike = regexp.MustCompile(`(?i)aws_secret_access_key|-----BEGIN [A-Z ]*PRIVATE KEY-----|\b(?:sk-|gsk_)[A-Za-z0-9_-]{16,}`)

// LintText flags secret-like content in rendered text.
func LintText(s string) []Issue {
	if loc := secretLike.FindStringIndex(s); loc != nil {
		return []Issue{{Rule: "security.secrets", Message: "text appears to contain secrets-like content", Offset: loc[0]}}
	}
	return nil
}

func parse(name, body string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Parse(body)
}

func checksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Store keeps every accepted version of each template in memory.
type Store struct {
	mu       sync.RWMutex
	versions map[string][]Prompt // ascending by Version
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{versions: make(map[string][]Prompt), now: time.Now}
}

// DefaultStore returns a store holding the built-in router template as version 1.
func DefaultStore() *Store {
	s := NewStore()
	if _, err := s.Save(Prompt{Name: RouterTemplate, Body: routerBody, Meta: map[string]string{"source": "builtin"}}); err != nil {
		panic(fmt.Sprintf("builtin %s template: %v", RouterTemplate, err))
	}
	return s
}

// Save lints p and stores it as the next version of p.Name. Saving the body
// the latest version already has returns that version unchanged.
func (s *Store) Save(p Prompt) (Prompt, error) {
	if issues := Lint(p); len(issues) > 0 {
		return Prompt{}, &LintError{Name: p.Name, Issues: issues}
	}
	sum := checksum(p.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.versions[p.Name]
	if n := len(vs); n > 0 && vs[n-1].Checksum == sum {
		return vs[n-1], nil
	}
	saved := Prompt{
		Name:     p.Name,
		Version:  len(vs) + 1,
		Body:     p.Body,
		Checksum: sum,
		SavedAt:  s.now(),
		Meta:     p.Meta,
	}
	s.versions[p.Name] = append(vs, saved)
	return saved, nil
}

// Get returns a version of name; version <= 0 means the latest.
func (s *Store) Get(name string, version int) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[name]
	switch {
	case len(vs) == 0 || version > len(vs):
		return Prompt{}, false
	case version <= 0:
		return vs[len(vs)-1], true
	}
	// versions are dense from 1
	return vs[version-1], true
}

// List returns all versions of name, oldest first.
func (s *Store) List(name string) []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Prompt(nil), s.versions[name]...)
}

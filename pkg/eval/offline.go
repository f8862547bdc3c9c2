// Package eval scores decision-maker replies against recorded fixtures,
// offline (parse only) or replayed through a live orchestration cycle.
package eval

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/wilhg/toolwire/pkg/decision"
	"github.com/wilhg/toolwire/pkg/runtime"
)

// Fixture is one recorded decision reply and what it should lead to.
type Fixture struct {
	Name     string      `json:"name"`
	Question string      `json:"question,omitempty"`
	Reply    string      `json:"reply"`
	Expect   Expectation `json:"expect"`
}

// Expectation uses runtime outcome names: invoked, no_tool,
// decision_unparseable, ...
type Expectation struct {
	Outcome  runtime.Outcome `json:"outcome"`
	ToolName string          `json:"tool_name,omitempty"`
	// Result is compared against the JSON encoding of the tool result in
	// replay mode only.
	Result json.RawMessage `json:"result,omitempty"`
}

// Summary is the score of a fixture run.
type Summary struct {
	Total   int
	Passed  int
	Details []string
}

// Score is Passed/Total, or 1 for an empty run.
func (s Summary) Score() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Passed) / float64(s.Total)
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d passed (score %.2f)", s.Passed, s.Total, s.Score())
}

// EvaluateDecisionFixtures loads fixtures from an fs.FS directory (json
// files) and runs each reply through decision.Parse. A tool decision counts
// as the invoked outcome.
func EvaluateDecisionFixtures(fsys fs.FS, dir string) (Summary, error) {
	fixtures, err := LoadFixtures(fsys, dir)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, fx := range fixtures {
		sum.Total++
		got, name := offlineOutcome(fx.Reply)
		if problems := compare(fx, got, name); len(problems) > 0 {
			sum.Details = append(sum.Details, problems...)
			continue
		}
		sum.Passed++
	}
	return sum, nil
}

func offlineOutcome(reply string) (runtime.Outcome, string) {
	d, err := decision.Parse(reply)
	switch {
	case err != nil:
		return runtime.OutcomeDecisionUnparseable, ""
	case !d.ToolUse:
		return runtime.OutcomeNoTool, ""
	default:
		return runtime.OutcomeInvoked, d.ToolName
	}
}

func compare(fx Fixture, outcome runtime.Outcome, toolName string) []string {
	var problems []string
	if outcome != fx.Expect.Outcome {
		problems = append(problems, fmt.Sprintf("%s: outcome %s, want %s", fx.Name, outcome, fx.Expect.Outcome))
	}
	if fx.Expect.ToolName != "" && toolName != fx.Expect.ToolName {
		problems = append(problems, fmt.Sprintf("%s: tool %q, want %q", fx.Name, toolName, fx.Expect.ToolName))
	}
	return problems
}

// LoadFixtures reads every .json file in dir, sorted by file name.
func LoadFixtures(fsys fs.FS, dir string) ([]Fixture, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	var out []Fixture
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var fx Fixture
		if err := json.Unmarshal(b, &fx); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", e.Name(), err)
		}
		if fx.Name == "" {
			fx.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		out = append(out, fx)
	}
	return out, nil
}

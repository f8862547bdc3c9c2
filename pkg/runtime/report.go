package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wilhg/toolwire/pkg/decision"
	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/tool"
)

// State is a step of the orchestration state machine.
type State string

const (
	Idle                State = "idle"
	Discovering         State = "discovering"
	Discovered          State = "discovered"
	DiscoveryFailed     State = "discovery_failed"
	Deciding            State = "deciding"
	Decided             State = "decided"
	DecisionUnparseable State = "decision_unparseable"
	DecisionFailed      State = "decision_failed"
	Invoking            State = "invoking"
	Invoked             State = "invoked"
	InvocationFailed    State = "invocation_failed"
)

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeInvoked             Outcome = "invoked"
	OutcomeNoTool              Outcome = "no_tool"
	OutcomeNoToolsAvailable    Outcome = "no_tools_available"
	OutcomeDiscoveryFailed     Outcome = "discovery_failed"
	OutcomeDecisionUnparseable Outcome = "decision_unparseable"
	OutcomeDecisionFailed      Outcome = "decision_failed"
	OutcomeInvocationFailed    Outcome = "invocation_failed"
)

// Report describes one finished cycle. OfferedSize counts the catalog
// entries shown to the decision maker after shortlisting; PromptTokens is the
// estimated size of the decision prompt.
type Report struct {
	CycleID      string             `json:"cycle_id"`
	Question     string             `json:"question"`
	Outcome      Outcome            `json:"outcome"`
	States       []State            `json:"states"`
	CatalogSize  int                `json:"catalog_size"`
	OfferedSize  int                `json:"offered_size"`
	PromptTokens int                `json:"prompt_tokens,omitempty"`
	Reply        string             `json:"reply,omitempty"`
	Decision     *decision.Decision `json:"decision,omitempty"`
	Result       *tool.Result       `json:"result,omitempty"`
	Err          *errmodel.Error    `json:"error,omitempty"`
	Duration     time.Duration      `json:"duration_ns"`
}

func (r *Report) enter(s State) { r.States = append(r.States, s) }

// OK reports whether the cycle ended without a failure.
func (r Report) OK() bool { return r.Err == nil }

// Summary renders the report for a terminal user.
func (r Report) Summary() string {
	switch r.Outcome {
	case OutcomeInvoked:
		b, err := json.Marshal(r.Result.Result)
		if err != nil {
			b = []byte(fmt.Sprint(r.Result.Result))
		}
		return fmt.Sprintf("Tool %s returned %s at %s", r.Decision.ToolName, b, r.Result.Timestamp)
	case OutcomeNoTool:
		return "No tool needed."
	case OutcomeNoToolsAvailable:
		return "No tools available."
	case OutcomeDiscoveryFailed:
		return "Discovery failed: " + r.errText()
	case OutcomeDecisionUnparseable:
		return "Could not understand the decision: " + r.errText()
	case OutcomeDecisionFailed:
		return "Decision failed: " + r.errText()
	case OutcomeInvocationFailed:
		return "Invocation failed: " + r.errText()
	}
	return string(r.Outcome)
}

func (r Report) errText() string {
	if r.Err == nil {
		return "unknown error"
	}
	return r.Err.Message
}

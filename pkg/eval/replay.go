package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/wilhg/toolwire/pkg/decision"
	"github.com/wilhg/toolwire/pkg/mcpclient"
	"github.com/wilhg/toolwire/pkg/prompt"
	"github.com/wilhg/toolwire/pkg/runtime"
)

// Replay runs each fixture as a full cycle against client, with the
// fixture's reply standing in for the decision maker.
func Replay(ctx context.Context, client mcpclient.Client, fixtures []Fixture, opts ...runtime.Option) Summary {
	var sum Summary
	for _, fx := range fixtures {
		sum.Total++
		reply := fx.Reply
		maker := decision.MakerFunc(func(context.Context, prompt.Request) (string, error) { return reply, nil })
		question := fx.Question
		if question == "" {
			question = fx.Name
		}
		rep := runtime.New(client, maker, opts...).Run(ctx, question)

		var toolName string
		if rep.Decision != nil {
			toolName = rep.Decision.ToolName
		}
		problems := compare(fx, rep.Outcome, toolName)
		if len(fx.Expect.Result) > 0 && rep.Result != nil {
			if p := compareResult(fx, rep.Result.Result); p != "" {
				problems = append(problems, p)
			}
		}
		if len(problems) > 0 {
			sum.Details = append(sum.Details, problems...)
			continue
		}
		sum.Passed++
	}
	return sum
}

func compareResult(fx Fixture, got any) string {
	b, err := json.Marshal(got)
	if err != nil {
		return fmt.Sprintf("%s: result not encodable: %v", fx.Name, err)
	}
	var want, have bytes.Buffer
	if err := json.Compact(&want, fx.Expect.Result); err != nil {
		return fmt.Sprintf("%s: expected result is not JSON: %v", fx.Name, err)
	}
	if err := json.Compact(&have, b); err != nil {
		return fmt.Sprintf("%s: result is not JSON: %v", fx.Name, err)
	}
	if want.String() != have.String() {
		return fmt.Sprintf("%s: result %s, want %s", fx.Name, have.String(), want.String())
	}
	return ""
}

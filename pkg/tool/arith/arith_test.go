package arith

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/tool"
)

func dispatcher(t *testing.T, opts ...Option) *tool.Dispatcher {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, opts...))
	return tool.NewDispatcher(reg)
}

func resultJSON(t *testing.T, res tool.Result) string {
	t.Helper()
	b, err := json.Marshal(res.Result)
	require.NoError(t, err)
	return string(b)
}

func TestCatalogOrder(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg))
	cat, err := reg.Catalog()
	require.NoError(t, err)
	require.Len(t, cat, 2)
	require.Equal(t, "add", cat[0].Name)
	require.Equal(t, "Adds two numbers together.", cat[0].Description)
	require.Equal(t, "subtract", cat[1].Name)
	require.Equal(t, []string{"a", "b"}, cat[1].RequiredNames())
}

func TestArithmetic(t *testing.T) {
	d := dispatcher(t)
	cases := []struct {
		tool, body, want string
	}{
		{"add", `{"a": 5, "b": 3}`, "8"},
		{"add", `{"a": 1.5, "b": 1}`, "2.5"},
		{"add", `{"a": -2, "b": 2}`, "0"},
		{"subtract", `{"a": 10, "b": 4}`, "6"},
		{"subtract", `{"a": 4, "b": 10}`, "-6"},
		{"subtract", `{"a": 0.5, "b": 0.25}`, "0.25"},
	}
	for _, c := range cases {
		res, err := d.Invoke(context.Background(), c.tool, strings.NewReader(c.body))
		require.NoError(t, err, c.body)
		require.Equal(t, c.want, resultJSON(t, res), "%s %s", c.tool, c.body)
	}
}

func TestInvalidOperands(t *testing.T) {
	d := dispatcher(t)
	_, err := d.Invoke(context.Background(), "add", strings.NewReader(`{"a": "5", "b": 3}`))
	require.True(t, errmodel.IsCode(err, errmodel.CodeInvalidArguments))
	_, err = d.Invoke(context.Background(), "add", strings.NewReader(`{"a": 5}`))
	require.True(t, errmodel.IsCode(err, errmodel.CodeInvalidArguments))
}

func TestLegacyAlias(t *testing.T) {
	d := dispatcher(t)
	_, err := d.Invoke(context.Background(), LegacySubtractName, strings.NewReader(`{"a": 1, "b": 1}`))
	require.True(t, errmodel.IsCode(err, errmodel.CodeNotFound))

	d = dispatcher(t, WithLegacyAlias())
	res, err := d.Invoke(context.Background(), LegacySubtractName, strings.NewReader(`{"a": 7, "b": 2}`))
	require.NoError(t, err)
	require.Equal(t, "5", resultJSON(t, res))
	require.Equal(t, 3, d.Registry().Len())
}

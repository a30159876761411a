package observability

import (
	"context"
	"testing"

	"github.com/aretw0/contract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := NewMetrics()
	g := contract.New(contract.WithHooks(m.Hooks()))

	c, err := g.Compile(contract.Signature{
		Name:   "pair",
		Params: contract.Params("arg_a", "Tuple[int, int]"),
		Return: "List[str]",
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Invoke(ctx, func(args ...any) (any, error) { return []any{"a"}, nil }, [2]int{4, 1})
	require.NoError(t, err)
	require.Error(t, c.CheckArgs(ctx, [3]int{4, 1, 1}))
	require.Error(t, c.CheckReturn(ctx, []any{1}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues("pair", "argument", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues("pair", "argument", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues("pair", "return", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checks.WithLabelValues("pair", "return", "fail")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Violations.WithLabelValues("pair", "arg_a", "length")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Violations.WithLabelValues("pair", "return", "element")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()

	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg), "registering twice is harmless")

	m.Checks.WithLabelValues("f", "argument", "pass").Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "contract_checks_total")
}

package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/adapters/memory"
	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/observability"
	"github.com/aretw0/contract/pkg/registry"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
contracts:
  - name: to_strings
    description: Renders integers as text.
    params:
      - {name: arg_a, type: "List[int]"}
    returns: "List[str]"
  - name: pair
    params:
      - {name: arg_a, type: "Tuple[int, int]"}
      - {name: label, type: str}
    returns: "Tuple[str, str]"
`

func newService(t *testing.T) *Service {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(testManifest))
	require.NoError(t, err)
	s, err := New(contract.New(), m)
	require.NoError(t, err)
	return s
}

func TestService_Parse(t *testing.T) {
	s := newService(t)

	n, err := s.Parse("Dict[str, List[int]]")
	require.NoError(t, err)
	assert.Equal(t, "mapping", n.Kind)
	assert.Equal(t, "Dict[str, List[int]]", n.Name)
	require.Len(t, n.SubTypes, 2)
	assert.Equal(t, "list", n.SubTypes[1].Kind)

	n, err = s.Parse("Optional[int]")
	require.NoError(t, err)
	assert.Equal(t, "unchecked", n.Kind)

	_, err = s.Parse("List[int")
	assert.ErrorIs(t, err, schema.ErrUnbalanced)
}

func TestService_Check(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	res, err := s.Check(ctx, "arg_a", "Tuple[int, int]", []byte("[4, 1]"))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = s.Check(ctx, "arg_a", "Tuple[int, int]", []byte("[4, 1, 1]"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "'arg_a' has a length of 3, but should be a length of 2.", res.Message)
	assert.Equal(t, schema.RuleLength, res.Violation.Rule)

	res, err = s.Check(ctx, "", "List[int]", []byte(`[1, "1"]`))
	require.NoError(t, err)
	assert.Equal(t, "'value' has a str at index 1, but should be int.", res.Message)

	_, err = s.Check(ctx, "x", "List[Foo]", []byte("[]"))
	assert.True(t, schema.IsParseError(err))

	_, err = s.Check(ctx, "x", "List[int]", []byte("[1,"))
	assert.Error(t, err)
}

func TestService_Contracts(t *testing.T) {
	s := newService(t)

	infos := s.Contracts()
	require.Len(t, infos, 2)
	assert.Equal(t, "to_strings", infos[0].Name)
	assert.Equal(t, "Renders integers as text.", infos[0].Description)
	assert.Equal(t, "List[int]", infos[0].Params[0].Annotation)
	require.NotNil(t, infos[0].Returns)
	assert.Equal(t, "list", infos[0].Returns.Descriptor.Kind)

	info, err := s.Contract("pair")
	require.NoError(t, err)
	assert.Len(t, info.Params, 2)

	_, err = s.Contract("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CheckContract(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	res, err := s.CheckContract(ctx, "pair", ContractCheck{
		Args:    [][]byte{[]byte("[4, 1]"), []byte("hello")},
		Returns: []byte(`["a", "b"]`),
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = s.CheckContract(ctx, "pair", ContractCheck{
		Named: map[string][]byte{"arg_a": []byte(`["4", 1]`)},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 0, res.Violation.Index)

	res, err = s.CheckContract(ctx, "pair", ContractCheck{Returns: []byte("1")})
	require.NoError(t, err)
	assert.Equal(t, "'return' is a int, but should be tuple.", res.Message)

	_, err = s.CheckContract(ctx, "nope", ContractCheck{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_CompileErrors(t *testing.T) {
	m, err := manifest.Load(strings.NewReader("contracts:\n  - name: bad\n    returns: \"List[int\"\n"))
	require.NoError(t, err)

	_, err = New(contract.New(), m)
	assert.ErrorIs(t, err, schema.ErrUnbalanced)

	s, err := New(contract.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, s.Contracts())
}

func TestService_Reload(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	next, err := manifest.New(map[string]string{"Count": "int"}, manifest.Entry{
		Name:   "counts",
		Params: []manifest.ParamEntry{{Name: "xs", Type: "List[Count]"}},
	})
	require.NoError(t, err)

	registry := schema.DefaultRegistry()
	require.NoError(t, next.ApplyAliases(registry))
	require.NoError(t, s.Reload(contract.New(contract.WithRegistry(registry)), next))

	_, err = s.Contract("to_strings")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := s.CheckContract(ctx, "counts", ContractCheck{Args: [][]byte{[]byte(`[1, "2"]`)}})
	require.NoError(t, err)
	assert.Equal(t, "'xs' has a str at index 1, but should be Count.", res.Message)

	// A broken manifest leaves the running contracts in place.
	broken := &manifest.Manifest{Contracts: []manifest.Entry{{Name: "bad", Returns: "List[int"}}}
	assert.ErrorIs(t, s.Reload(contract.New(), broken), schema.ErrUnbalanced)
	_, err = s.Contract("counts")
	assert.NoError(t, err)
}

func TestService_Violations(t *testing.T) {
	ctx := context.Background()

	s := newService(t)
	_, err := s.Violations(ctx, 10)
	assert.ErrorIs(t, err, ErrNoJournal)

	j := memory.NewJournal(10)
	m, err := manifest.Load(strings.NewReader(testManifest))
	require.NoError(t, err)
	g := contract.New(contract.WithHooks(observability.JournalHooks(j, nil)))
	s, err = New(g, m, WithJournal(j))
	require.NoError(t, err)

	res, err := s.CheckContract(ctx, "pair", ContractCheck{
		Args:    [][]byte{[]byte("[4, 1]"), []byte(`"label"`)},
		Returns: []byte(`["a", 1]`),
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	entries, err := s.Violations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pair", entries[0].Function)
	assert.Equal(t, contract.PhaseReturn, entries[0].Phase)
	assert.NotEmpty(t, entries[0].CallID)
}

func TestService_Run(t *testing.T) {
	m, err := manifest.Load(strings.NewReader(testManifest))
	require.NoError(t, err)

	var got []any
	s, err := New(contract.New(), m, WithImplementations(map[string]registry.Function{
		"to_strings": func(_ context.Context, args map[string]any) (any, error) {
			got = args["arg_a"].([]any)
			out := make([]any, len(got))
			for i, v := range got {
				out[i] = fmt.Sprint(v)
			}
			if len(got) == 3 {
				out[2] = 3
			}
			return out, nil
		},
	}))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := s.Run(ctx, "to_strings", map[string][]byte{"arg_a": []byte("[1, 2]")})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, []any{"1", "2"}, res.Value)

	got = nil
	res, err = s.Run(ctx, "to_strings", map[string][]byte{"arg_a": []byte(`[1, "2"]`)})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "'arg_a' has a str at index 1, but should be int.", res.Message)
	assert.Nil(t, got, "implementation must not run")

	res, err = s.Run(ctx, "to_strings", map[string][]byte{"arg_a": []byte("[1, 2, 3]")})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "'return' has a int at index 2, but should be str.", res.Message)
	assert.Equal(t, []any{"1", "2", 3}, res.Value)

	_, err = s.Run(ctx, "pair", nil)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, err = s.Run(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Run_UnboundImplementation(t *testing.T) {
	m, err := manifest.Load(strings.NewReader(testManifest))
	require.NoError(t, err)

	_, err = New(contract.New(), m, WithImplementations(map[string]registry.Function{
		"orphan": func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))
	assert.EqualError(t, err, `bind "orphan": no contract declared`)
}

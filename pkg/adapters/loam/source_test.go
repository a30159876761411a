package loam

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/internal/testutils"
	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(t *testing.T, docs map[string]string) *Source {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t)
	testutils.WriteDocs(t, dir, docs)
	return New(loam.NewTypedRepository[ContractMetadata](repo))
}

func TestSource_Load(t *testing.T) {
	src := newSource(t, map[string]string{
		"to_strings.md": `---
params:
  - name: arg_a
    type: List[int]
returns: List[str]
---
Converts every integer to its decimal text.`,
		"owners.md": `---
name: owners
description: Lists owners.
params:
  - name: ids
    type: List[OwnerID]
---
Ignored body.`,
		"types.md": `---
types:
  UserID: int
  OwnerID: UserID
---`,
	})

	m, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"owners", "to_strings"}, m.Names())
	assert.Equal(t, map[string]string{"UserID": "int", "OwnerID": "UserID"}, m.Types)

	e, ok := m.Lookup("to_strings")
	require.True(t, ok)
	assert.Equal(t, "Converts every integer to its decimal text.", e.Description)
	assert.Equal(t, []manifest.ParamEntry{{Name: "arg_a", Type: "List[int]"}}, e.Params)
	assert.Equal(t, "List[str]", e.Returns)

	owners, _ := m.Lookup("owners")
	assert.Equal(t, "Lists owners.", owners.Description)

	// The loaded manifest compiles like a file manifest.
	registry := schema.DefaultRegistry()
	require.NoError(t, m.ApplyAliases(registry))
	contracts, err := m.Compile(contract.New(contract.WithRegistry(registry)))
	require.NoError(t, err)
	assert.EqualError(t, contracts["owners"].CheckArgs(context.Background(), []any{1, "2"}),
		"'ids' has a str at index 1, but should be OwnerID.")
}

func TestSource_Load_Collision(t *testing.T) {
	src := newSource(t, map[string]string{
		"a.md": `---
name: shared
---`,
		"b.md": `---
name: shared
---`,
	})

	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrInvalid)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestSource_Load_ConflictingAliases(t *testing.T) {
	src := newSource(t, map[string]string{
		"a.md": `---
types:
  ID: int
---`,
		"b.md": `---
types:
  ID: str
---`,
	})

	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, manifest.ErrInvalid)
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "to_strings", trimExtension("to_strings.md"))
	assert.Equal(t, "api/users", trimExtension("api/users.yaml"))
	assert.Equal(t, "plain", trimExtension("plain"))
}

func TestSource_Watch_ClosesOnCancel(t *testing.T) {
	src := newSource(t, map[string]string{"a.md": "---\nreturns: int\n---"})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Watch(ctx)
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

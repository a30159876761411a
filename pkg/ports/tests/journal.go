// Package tests holds behaviour suites shared by every implementation of a port.
package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// JournalContractTest verifies that a Journal implementation adheres to
// the interface contract. The journal must be empty and hold at least
// five entries.
func JournalContractTest(t *testing.T, journal ports.Journal) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	entry := func(i int) ports.Entry {
		return ports.Entry{
			ID:         fmt.Sprintf("entry-%d", i),
			CallID:     fmt.Sprintf("call-%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Function:   "to_strings",
			Param:      "arg_a",
			Phase:      contract.PhaseArgument,
			Annotation: "List[int]",
			Message:    "'arg_a' has a str at index 2, but should be int.",
			Violation: &schema.Violation{
				Name:     "arg_a",
				Rule:     schema.RuleElement,
				Index:    2,
				Actual:   "str",
				Expected: "int",
			},
		}
	}

	t.Run("Empty", func(t *testing.T) {
		got, err := journal.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Record and Recent", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			require.NoError(t, journal.Record(ctx, entry(i)), "Record should not return error")
		}

		got, err := journal.Recent(ctx, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "entry-3", got[0].ID, "newest entry comes first")
		assert.Equal(t, "entry-1", got[2].ID)

		// Entries survive the round trip through the backend.
		assert.Equal(t, "call-3", got[0].CallID)
		assert.Equal(t, contract.PhaseArgument, got[0].Phase)
		assert.True(t, base.Add(3*time.Second).Equal(got[0].Timestamp))
		require.NotNil(t, got[0].Violation)
		assert.Equal(t, schema.RuleElement, got[0].Violation.Rule)
		assert.Equal(t, 2, got[0].Violation.Index)
		assert.Equal(t, entry(3).Message, got[0].Message)
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := journal.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "entry-3", got[0].ID)
		assert.Equal(t, "entry-2", got[1].ID)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, journal.Clear(ctx))
		got, err := journal.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, got, "Recent after Clear should be empty")
	})
}

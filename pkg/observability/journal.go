package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/ports"
)

// JournalHooks returns guard hooks that record every violation in j.
// A journal that cannot record does not fail the guarded call; the error
// is logged instead.
func JournalHooks(j ports.Journal, logger *slog.Logger) contract.Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return contract.Hooks{
		OnViolation: func(ctx context.Context, e *contract.CheckEvent) {
			entry := ports.NewEntry(e)
			if err := j.Record(context.WithoutCancel(ctx), entry); err != nil {
				logger.Error("failed to record violation",
					"function", e.Function,
					"param", e.Param,
					"call_id", e.CallID,
					"err", err,
				)
			}
		},
	}
}

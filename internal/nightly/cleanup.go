package nightly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Purge deletes every live deployment of the account. It keeps going after
// individual failures and returns them joined; a later purge retries what is left.
func Purge(ctx context.Context, platform Platform, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ids, err := platform.ListDeployments(ctx)
	if err != nil {
		return fmt.Errorf("list deployments: %w", err)
	}
	if len(ids) == 0 {
		logger.Debug("no deployments to purge")
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := platform.DeleteDeployment(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete deployment %s: %w", id, err))
			continue
		}
		logger.Info("deployment purged", "deployment", id)
	}
	return errors.Join(errs...)
}

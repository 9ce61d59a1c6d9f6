package cmdlog

import (
	"time"

	"peerlink/internal/logging"
	"peerlink/internal/metrics"
)

// Run executes a CLI command body, counting runs and failures and logging the outcome.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	took := time.Since(start).String()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err, "took": took})
	} else {
		logging.Info(cmd+"_ok", map[string]any{"took": took})
	}
	return err
}

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/filelock"
)

// reportError prints a failed command's error to w, followed by a hint on
// what to do about it.
func reportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}

	if rt == nil {
		return
	}
	args := []any{"error", err, "severity", errors.GetSeverity(err).String()}
	if errors.IsUserFacing(err) {
		rt.logger.Debug("command failed", args...)
		return
	}
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug, errors.SeverityInfo:
		rt.logger.Info("command failed", args...)
	case errors.SeverityWarning:
		rt.logger.Warn("command failed", args...)
	default:
		rt.logger.Error("command failed", args...)
	}
}

func errorHint(err error) string {
	switch {
	case errors.IsRetryable(err):
		var lockErr *errors.LockError
		if errors.As(err, &lockErr) {
			doc := strings.TrimSuffix(lockErr.LockPath, filelock.LockSuffix)
			if pid, herr := filelock.Holder(doc); herr == nil && pid > 0 {
				return fmt.Sprintf("process %d holds the lock; run the command again once it finishes", pid)
			}
		}
		return "nothing was changed; run the command again"
	case errors.IsStructural(err):
		return "fix the input and run the command again"
	}
	return ""
}

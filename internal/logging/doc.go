// Package logging provides structured logging for symphony invocations.
//
// Every invocation of the CLI is a short-lived process that performs at
// most one state transition. The file sink accumulates a JSON-lines history
// across invocations in {dir}/symphony.log; the console sink renders the
// same records for humans on stderr via tint.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{
//	    Dir:      cfg.Logging.Dir,
//	    Level:    cfg.Logging.Level,
//	    Rotation: logging.RotationConfig{MaxSizeMB: 10, MaxBackups: 3},
//	    Console:  os.Stderr,
//	    Color:    true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithRun(doc.RunID).WithOperation("mark-failed").WithPhase("build")
//	log.Info("transition", "from", "running", "to", "retrying")
//
// Output (file sink):
//
//	{"time":"...","level":"INFO","msg":"transition","run_id":"...","operation":"mark-failed","phase":"build","from":"running","to":"retrying"}
//
// # Rotation
//
// [RotatingWriter] rotates the file once it would exceed MaxSizeMB. Backups
// are named symphony.log.1 (newest) through symphony.log.N and are gzipped
// when Compress is set.
//
// # Reading History
//
// [ReadEntries] parses the file back and [Filter] narrows it by run, phase,
// operation, level or time. The `symphony logs` command is built on these.
//
// # Testing
//
// Use [NopLogger] to discard all output.
package logging

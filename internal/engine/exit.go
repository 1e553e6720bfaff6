package engine

import "secaudit/internal/rules"

// Exit code contract:
// 0 = clean run, no blocking failures
// 1 = blocking failures detected (any failure with strict)
// 2 = partial failure (some rules could not be evaluated)
// 3 = fatal error (audit did not run to completion)
const (
	ExitClean   = 0
	ExitWrongs  = 1
	ExitPartial = 2
	ExitFatal   = 3
)

func exitCodeForRun(fatal, partial, wrongs bool) int {
	if fatal {
		return ExitFatal
	}
	if partial {
		return ExitPartial
	}
	if wrongs {
		return ExitWrongs
	}
	return ExitClean
}

// ExitCode maps a summary onto the exit code contract. With strict set,
// warnings count as failures.
func ExitCode(s rules.Summary, strict bool) int {
	wrongs := s.Failed > 0 || (strict && s.Warnings > 0)
	return exitCodeForRun(false, s.Errored > 0, wrongs)
}

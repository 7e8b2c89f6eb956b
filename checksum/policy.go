package checksum

import (
	"fmt"

	"repoconnector/internal"
	"repoconnector/spi"
)

// StrictPolicy accepts on the first match, aborts validation on the first
// mismatch, and fails the download if every configured checksum source is
// exhausted with nothing to compare against. This is the default policy —
// the teacher's own MD5-or-nothing verification, generalized to N
// algorithms and three checksum provenances.
type StrictPolicy struct{}

func (StrictPolicy) OnMatch(spi.Algorithm, spi.ChecksumKind) bool { return true }

func (StrictPolicy) OnMismatch(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) error {
	return internal.Wrap(internal.ErrChecksumMismatch,
		fmt.Sprintf("%s checksum mismatch (%s): expected %s, got %s", algo.Name, kind, failure.Expected, failure.Actual),
		failure)
}

func (StrictPolicy) OnError(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) {
	internal.GetLogger().Warn("checksum %s (%s) unavailable: %v", algo.Name, kind, failure.Cause)
}

func (StrictPolicy) OnNoMoreChecksums() error {
	return internal.New(internal.ErrChecksumUnavailable, "no checksum could be validated")
}

func (StrictPolicy) OnTransferRetry() {}

func (StrictPolicy) OnTransferChecksumFailure(failure error) bool { return false }

// WarnPolicy behaves like StrictPolicy on match, but mismatches are
// logged and tolerated rather than aborting the transfer, and exhaustion
// of every checksum source is tolerated too — for repositories whose
// remote checksums are known to be occasionally stale.
type WarnPolicy struct{}

func (WarnPolicy) OnMatch(spi.Algorithm, spi.ChecksumKind) bool { return true }

func (WarnPolicy) OnMismatch(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) error {
	internal.GetLogger().Warn("%s checksum mismatch (%s): expected %s, got %s — tolerated",
		algo.Name, kind, failure.Expected, failure.Actual)
	return nil
}

func (WarnPolicy) OnError(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) {
	internal.GetLogger().Warn("checksum %s (%s) unavailable: %v", algo.Name, kind, failure.Cause)
}

func (WarnPolicy) OnNoMoreChecksums() error { return nil }

func (WarnPolicy) OnTransferRetry() {}

func (WarnPolicy) OnTransferChecksumFailure(failure error) bool { return true }

// IgnorePolicy never fails a transfer: every callback tolerates. Unlike
// configuring no ChecksumPolicy at all, the validator still runs, so a
// matching expected value is staged and Commit writes its sidecar. Kept
// as an explicit named policy for symmetry with Strict/Warn.
type IgnorePolicy struct{}

func (IgnorePolicy) OnMatch(spi.Algorithm, spi.ChecksumKind) bool { return true }

func (IgnorePolicy) OnMismatch(spi.Algorithm, spi.ChecksumKind, *spi.ChecksumFailure) error { return nil }

func (IgnorePolicy) OnError(spi.Algorithm, spi.ChecksumKind, *spi.ChecksumFailure) {}

func (IgnorePolicy) OnNoMoreChecksums() error { return nil }

func (IgnorePolicy) OnTransferRetry() {}

func (IgnorePolicy) OnTransferChecksumFailure(failure error) bool { return true }

// InspectAllPolicy never accepts early — it walks every configured
// checksum source to completion, logging matches and mismatches alike,
// and tolerates exhaustion. Useful for diagnostics (e.g. a "verify"
// subcommand that wants a full report rather than a first-match result).
type InspectAllPolicy struct{}

func (InspectAllPolicy) OnMatch(algo spi.Algorithm, kind spi.ChecksumKind) bool {
	internal.GetLogger().Info("checksum match: %s (%s)", algo.Name, kind)
	return false
}

func (InspectAllPolicy) OnMismatch(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) error {
	internal.GetLogger().Warn("checksum mismatch: %s (%s): expected %s, got %s", algo.Name, kind, failure.Expected, failure.Actual)
	return nil
}

func (InspectAllPolicy) OnError(algo spi.Algorithm, kind spi.ChecksumKind, failure *spi.ChecksumFailure) {
	internal.GetLogger().Warn("checksum %s (%s) unavailable: %v", algo.Name, kind, failure.Cause)
}

func (InspectAllPolicy) OnNoMoreChecksums() error { return nil }

func (InspectAllPolicy) OnTransferRetry() {}

func (InspectAllPolicy) OnTransferChecksumFailure(failure error) bool { return true }

// PolicyByName resolves the CLI-facing --checksum-policy flag value to a
// concrete policy. Unknown names fall back to StrictPolicy.
func PolicyByName(name string) spi.ChecksumPolicy {
	switch name {
	case "warn":
		return WarnPolicy{}
	case "ignore":
		return IgnorePolicy{}
	case "inspect-all":
		return InspectAllPolicy{}
	default:
		return StrictPolicy{}
	}
}

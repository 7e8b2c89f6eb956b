package checksum

import (
	"context"
	"strings"

	"repoconnector/internal"
	"repoconnector/spi"
)

// Outcome is the inspected-result replacement for the source's
// throw-to-abort validation loops: a validation step either Accepts
// (terminates successfully) or Continues to the next checksum source. A
// returned error aborts validation outright — the loop never uses
// exceptions for ordinary control flow.
type Outcome int

const (
	Continue Outcome = iota
	Accept
)

// Fetcher retrieves the small remote sidecar payload for a REMOTE_EXTERNAL
// checksum location. found=false means "not found", handled silently by
// the validator rather than as an error.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (content []byte, found bool, err error)
}

// Config is the validator's construction-time wiring: the configured
// algorithms (order is the tie-break order), the REMOTE_EXTERNAL
// locations, the policy, and the optional capabilities.
type Config struct {
	Algorithms []spi.Algorithm
	Locations  []spi.ChecksumLocation
	Policy     spi.ChecksumPolicy
	Provided   map[string]string // nil if no PROVIDED source configured
	Fetcher    Fetcher           // nil disables REMOTE_EXTERNAL entirely
	Processor  spi.FileProcessor
	FinalPath  string
}

// Validator drives the policy-governed comparison of calculated digests
// against provided, inlined, and externally-fetched expected values, and
// owns the staged-sidecar state that Commit later persists.
type Validator struct {
	algorithms []spi.Algorithm
	locations  []spi.ChecksumLocation
	policy     spi.ChecksumPolicy
	provided   map[string]string
	fetcher    Fetcher
	processor  spi.FileProcessor
	finalPath  string

	// staged maps a final sidecar path to the expected value observed to
	// match the calculated digest at some point (invariant I1: nothing
	// else is ever written by Commit).
	staged map[string]string
}

func NewValidator(cfg Config) *Validator {
	return &Validator{
		algorithms: DedupeAlgorithms(cfg.Algorithms),
		locations:  cfg.Locations,
		policy:     cfg.Policy,
		provided:   cfg.Provided,
		fetcher:    cfg.Fetcher,
		processor:  cfg.Processor,
		finalPath:  cfg.FinalPath,
		staged:     make(map[string]string),
	}
}

// Validate runs the full algorithm: PROVIDED wins over REMOTE_INCLUDED
// wins over REMOTE_EXTERNAL; the first algorithm on which the policy
// accepts terminates validation. A nil policy means validation is
// disabled entirely.
func (v *Validator) Validate(ctx context.Context, actual map[string]Result, included map[string]string) error {
	if v.policy == nil {
		return nil
	}

	if v.provided != nil {
		outcome, err := v.validateSet(spi.Provided, actual, v.provided)
		if err != nil {
			return err
		}
		if outcome == Accept {
			return nil
		}
	}

	if included != nil {
		outcome, err := v.validateSet(spi.RemoteIncluded, actual, included)
		if err != nil {
			return err
		}
		if outcome == Accept {
			return nil
		}
	}

	if len(v.locations) > 0 {
		outcome, err := v.validateExternal(ctx, actual)
		if err != nil {
			return err
		}
		if outcome == Accept {
			return nil
		}
		if err := v.policy.OnNoMoreChecksums(); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateSet(kind spi.ChecksumKind, actual map[string]Result, expected map[string]string) (Outcome, error) {
	for _, algo := range v.algorithms {
		expectedStr, ok := expected[algo.Name]
		if !ok {
			continue
		}
		res, ok := actual[algo.Name]
		if !ok || res.Err != nil {
			continue
		}

		if !strings.EqualFold(expectedStr, res.Hex) {
			failure := &spi.ChecksumFailure{Algorithm: algo, Expected: expectedStr, Actual: res.Hex}
			if err := v.policy.OnMismatch(algo, kind, failure); err != nil {
				return Continue, err
			}
			continue
		}

		v.stage(algo, expectedStr)
		if v.policy.OnMatch(algo, kind) {
			return Accept, nil
		}
	}
	return Continue, nil
}

func (v *Validator) validateExternal(ctx context.Context, actual map[string]Result) (Outcome, error) {
	for _, loc := range v.locations {
		algo := loc.Algorithm
		res, ok := actual[algo.Name]
		if !ok {
			continue
		}
		if res.Err != nil {
			v.policy.OnError(algo, spi.RemoteExternal, &spi.ChecksumFailure{Algorithm: algo, Cause: res.Err})
			continue
		}

		if v.fetcher == nil {
			continue
		}
		content, found, err := v.fetcher.Fetch(ctx, loc.URI)
		if err != nil {
			v.policy.OnError(algo, spi.RemoteExternal, &spi.ChecksumFailure{Algorithm: algo, Cause: err})
			continue
		}
		if !found {
			continue
		}
		expectedStr := strings.TrimSpace(string(content))

		if !strings.EqualFold(expectedStr, res.Hex) {
			failure := &spi.ChecksumFailure{Algorithm: algo, Expected: expectedStr, Actual: res.Hex}
			if err := v.policy.OnMismatch(algo, spi.RemoteExternal, failure); err != nil {
				return Continue, err
			}
			continue
		}

		v.stage(algo, expectedStr)
		if v.policy.OnMatch(algo, spi.RemoteExternal) {
			return Accept, nil
		}
	}
	return Continue, nil
}

func (v *Validator) stage(algo spi.Algorithm, expectedValue string) {
	v.staged[v.finalPath+"."+algo.Extension] = expectedValue
}

// Commit writes every staged expected value to its sidecar path.
// Individual write failures are logged, never raised, per spec §4.C.
func (v *Validator) Commit() {
	for path, value := range v.staged {
		if err := v.processor.Write(path, []byte(value)); err != nil {
			internal.GetLogger().Warn("failed to write checksum sidecar %s: %v", path, err)
		}
	}
}

// Retry notifies the policy a transfer is about to be retried and clears
// any staged values from the failed attempt.
func (v *Validator) Retry() {
	if v.policy != nil {
		v.policy.OnTransferRetry()
	}
	v.staged = make(map[string]string)
}

// Handle delegates a terminal checksum failure to the policy; true means
// the worker should tolerate it and report success without a commit.
func (v *Validator) Handle(failure error) bool {
	if v.policy == nil {
		return true
	}
	return v.policy.OnTransferChecksumFailure(failure)
}

// Close discards staged state. Idempotent.
func (v *Validator) Close() {
	v.staged = make(map[string]string)
}

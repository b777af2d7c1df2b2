package agent

import (
	"context"
	"errors"
	"time"

	"github.com/iot-ota/edge-agent/internal/domain/update"
	"github.com/iot-ota/edge-agent/internal/logger"
	"github.com/iot-ota/edge-agent/internal/repository/artifact"
	"github.com/iot-ota/edge-agent/internal/repository/state"
	"github.com/iot-ota/edge-agent/internal/trust"
)

// Result is the terminal state of one remote check.
type Result int

const (
	// ResultCheckFailed means the check could not complete; nothing was
	// decided and the next scheduled cycle retries.
	ResultCheckFailed Result = iota
	// ResultUpToDate means the installed version is current.
	ResultUpToDate
	// ResultUpdateAvailable means a newer verified build was published.
	ResultUpdateAvailable
)

// String returns a human-readable result name for logs.
func (r Result) String() string {
	switch r {
	case ResultUpToDate:
		return "up-to-date"
	case ResultUpdateAvailable:
		return "update-available"
	default:
		return "check-failed"
	}
}

// Decision is the outcome of one remote check. Remote carries the
// verified remote manifest forward when an update is available.
type Decision struct {
	Result Result
	Remote update.Manifest
}

// Decider compares the published version against the installed one.
// The remote manifest is verified against the trust anchor before it is
// compared, so a corrupted or substituted manifest can never influence
// the decision, not even towards a false "no update needed".
type Decider struct {
	fetcher  artifact.Fetcher
	verifier *trust.Verifier
	store    state.Store
}

// NewDecider wires a decider from its collaborators.
func NewDecider(fetcher artifact.Fetcher, verifier *trust.Verifier, store state.Store) *Decider {
	return &Decider{
		fetcher:  fetcher,
		verifier: verifier,
		store:    store,
	}
}

// Check runs one remote check. The returned error carries the kind of
// failure when the result is ResultCheckFailed.
func (d *Decider) Check(ctx context.Context) (Decision, error) {
	logger.InfoKV(ctx, "Checking for updates", "artifact", artifact.ManifestName)

	signed, err := artifact.FetchSigned(ctx, d.fetcher, artifact.ManifestName)
	if err != nil {
		return Decision{Result: ResultCheckFailed}, err
	}

	if err = d.verifier.Verify(signed.Bytes, signed.Signature); err != nil {
		// The candidate manifest is discarded entirely: it is never
		// parsed, compared or trusted.
		return Decision{Result: ResultCheckFailed}, &update.VerificationError{
			Artifact: artifact.ManifestName,
			Err:      err,
		}
	}

	remote, err := update.ParseManifest(signed.Bytes)
	if err != nil {
		return Decision{Result: ResultCheckFailed}, err
	}

	local, err := d.store.Load(ctx)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return Decision{Result: ResultCheckFailed}, err
	}

	// An absent local state is the zero manifest: older than any build.
	if remote.Compare(local) == update.Newer {
		logger.InfoKV(ctx, "New version found",
			"remote", remote.LastBuild.Format(time.RFC3339),
			"local", localBuildForLog(local))

		return Decision{Result: ResultUpdateAvailable, Remote: remote}, nil
	}

	logger.InfoKV(ctx, "Already up to date",
		"local", localBuildForLog(local))

	return Decision{Result: ResultUpToDate}, nil
}

// localBuildForLog renders the installed build for log output.
func localBuildForLog(local update.Manifest) string {
	if local.IsZero() {
		return "never installed"
	}

	return local.LastBuild.Format(time.RFC3339)
}

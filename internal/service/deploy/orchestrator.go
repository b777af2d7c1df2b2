package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iot-ota/edge-agent/internal/domain/update"
	"github.com/iot-ota/edge-agent/internal/logger"
	"github.com/iot-ota/edge-agent/internal/repository/artifact"
	"github.com/iot-ota/edge-agent/internal/repository/state"
	"github.com/iot-ota/edge-agent/internal/runtime/docker"
	"github.com/iot-ota/edge-agent/internal/trust"
)

// Orchestrator drives the workload swap for one accepted update:
// fetch and verify the image bundle, load it into the runtime, replace
// the canonical unit with a bounded dual-run window, and commit the new
// manifest only after the swap has fully completed.
type Orchestrator struct {
	fetcher  artifact.Fetcher
	verifier *trust.Verifier
	runtime  docker.Runtime
	store    state.Store

	// workload is the canonical unit name.
	workload string
	// bundleName is the image bundle artifact name.
	bundleName string
	// settle bounds the dual-run window of a rolling swap.
	settle time.Duration
}

// New wires an orchestrator for the given workload.
func New(
	fetcher artifact.Fetcher,
	verifier *trust.Verifier,
	runtime docker.Runtime,
	store state.Store,
	workload, bundleName string,
	settle time.Duration,
) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		verifier:   verifier,
		runtime:    runtime,
		store:      store,
		workload:   workload,
		bundleName: bundleName,
		settle:     settle,
	}
}

// Apply installs the given verified manifest's build: every stage runs
// synchronously and in order, and the manifest reaches the local state
// only after the canonical identity swap is complete. A crash anywhere
// before that commit is recovered by simply re-running the cycle.
func (o *Orchestrator) Apply(ctx context.Context, manifest update.Manifest) error {
	logger.InfoKV(ctx, "Fetching image bundle", "artifact", o.bundleName)

	bundle, err := artifact.FetchSigned(ctx, o.fetcher, o.bundleName)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Verifying image bundle signature")

	if err = o.verifier.Verify(bundle.Bytes, bundle.Signature); err != nil {
		return &update.VerificationError{Artifact: o.bundleName, Err: err}
	}

	logger.Info(ctx, "Loading image bundle into the runtime")

	imageRef, err := o.runtime.Load(ctx, bundle.Bytes)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Image loaded", "image", imageRef)

	current, err := o.runtime.Lookup(ctx, o.workload)
	if err != nil {
		return err
	}

	if current == nil {
		if err = o.bootstrap(ctx, imageRef); err != nil {
			return err
		}
	} else {
		if err = o.rollingSwap(ctx, current, imageRef); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Committing installed version",
		"last_build", manifest.LastBuild.Format(time.RFC3339))

	return o.store.Commit(ctx, manifest)
}

// bootstrap starts the very first unit directly under the canonical
// name. There is nothing to retire, so there is no dual-run window.
func (o *Orchestrator) bootstrap(ctx context.Context, imageRef string) error {
	logger.InfoKV(ctx, "No canonical unit found, bootstrapping", "workload", o.workload)

	id, err := o.runtime.Start(ctx, o.workload, imageRef)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Canonical unit started", "unit", id)

	return nil
}

// rollingSwap replaces the canonical unit: the candidate starts first
// under a temporary identity, both run for the settle interval, and
// only then is the old unit retired and the candidate renamed to the
// canonical name. A candidate start failure leaves the old unit
// serving, untouched.
func (o *Orchestrator) rollingSwap(ctx context.Context, current *update.DeploymentUnit, imageRef string) error {
	candidateName := fmt.Sprintf("%s-candidate-%s", o.workload, uuid.NewString()[:8])

	logger.InfoKV(ctx, "Starting candidate unit",
		"candidate", candidateName, "image", imageRef)

	candidateID, err := o.runtime.Start(ctx, candidateName, imageRef)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Dual-run window open",
		"old", current.ID, "new", candidateID, "settle", o.settle)

	// Last stage boundary where cancellation is honored: abandoning the
	// update here leaves the old unit canonical and serving.
	if err = o.waitSettle(ctx); err != nil {
		logger.WarnKV(ctx, "Update cancelled during settle window, removing candidate",
			"candidate", candidateID)

		o.discardCandidate(ctx, candidateID)

		return err
	}

	// Swap point. From here the swap runs to completion; cancellation is
	// no longer observed so the runtime can never settle on two
	// canonical-looking units.
	swapCtx := context.WithoutCancel(ctx)

	if err = o.runtime.Stop(swapCtx, current.ID); err != nil {
		logger.WarnKV(ctx, "Stopping old unit failed, continuing swap",
			"unit", current.ID, "error", err)
	}

	if err = o.runtime.Remove(swapCtx, current.ID); err != nil {
		logger.WarnKV(ctx, "Removing old unit failed, continuing swap",
			"unit", current.ID, "error", err)
	}

	if err = o.runtime.Rename(swapCtx, candidateID, o.workload); err != nil {
		// The old unit still holds the canonical name. Retire the
		// candidate so a retried cycle never stacks another one on top
		// of a restart-always leftover.
		logger.WarnKV(ctx, "Renaming candidate to canonical failed, removing candidate",
			"candidate", candidateID, "error", err)

		o.discardCandidate(swapCtx, candidateID)

		return err
	}

	logger.InfoKV(ctx, "Canonical identity swapped", "unit", candidateID)

	return nil
}

// waitSettle blocks for the bounded dual-run interval, observing
// context cancellation.
func (o *Orchestrator) waitSettle(ctx context.Context) error {
	if o.settle <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(o.settle)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// discardCandidate best-effort removes an abandoned candidate unit.
// The caller's context is usually already cancelled at this point.
func (o *Orchestrator) discardCandidate(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	if err := o.runtime.Stop(ctx, id); err != nil {
		logger.WarnKV(ctx, "Stopping candidate failed", "unit", id, "error", err)
	}

	if err := o.runtime.Remove(ctx, id); err != nil {
		logger.WarnKV(ctx, "Removing candidate failed", "unit", id, "error", err)
	}
}

// Ensure makes sure the already-installed canonical unit is serving.
// It pulls no artifacts: a stopped unit is started in place, and a
// device with no unit at all waits for its first available update.
func (o *Orchestrator) Ensure(ctx context.Context) error {
	unit, err := o.runtime.Lookup(ctx, o.workload)
	if err != nil {
		return err
	}

	if unit == nil {
		logger.WarnKV(ctx, "No canonical unit present, waiting for first update",
			"workload", o.workload)

		return nil
	}

	if unit.Running() {
		return nil
	}

	logger.InfoKV(ctx, "Canonical unit is not running, starting it",
		"unit", unit.ID, "status", unit.Status)

	return o.runtime.StartExisting(ctx, unit.ID)
}

package agent

import (
	"context"
	"errors"

	"github.com/iot-ota/edge-agent/internal/config"
	"github.com/iot-ota/edge-agent/internal/domain/update"
	"github.com/iot-ota/edge-agent/internal/logger"
	"github.com/iot-ota/edge-agent/internal/repository/artifact"
	"github.com/iot-ota/edge-agent/internal/repository/state"
	"github.com/iot-ota/edge-agent/internal/runtime/docker"
	"github.com/iot-ota/edge-agent/internal/service/deploy"
	"github.com/iot-ota/edge-agent/internal/trust"
	"github.com/iot-ota/edge-agent/internal/version"
)

// Outcome is the class of one finished cycle, exposed to operators
// through the process exit status so a cron wrapper can tell the
// classes apart without parsing logs.
type Outcome int

const (
	// OutcomeUpToDate means nothing had to change. A cycle skipped
	// because another one holds the lock reports the same class.
	OutcomeUpToDate Outcome = iota
	// OutcomeUpdated means a newer build was installed and is serving.
	OutcomeUpdated
	// OutcomeCheckFailed means the remote check could not complete.
	OutcomeCheckFailed
	// OutcomeVerificationFailed means a signature did not verify.
	OutcomeVerificationFailed
	// OutcomeRuntimeFailed means a container runtime operation failed.
	OutcomeRuntimeFailed
	// OutcomeStateFailed means the local state could not be read or written.
	OutcomeStateFailed
)

// String returns the outcome class name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeVerificationFailed:
		return "verification-failed"
	case OutcomeRuntimeFailed:
		return "runtime-failed"
	case OutcomeStateFailed:
		return "state-failed"
	default:
		return "check-failed"
	}
}

// ExitCode maps the outcome class onto the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeUpToDate:
		return 0
	case OutcomeUpdated:
		return 10
	case OutcomeVerificationFailed:
		return 30
	case OutcomeRuntimeFailed:
		return 40
	case OutcomeStateFailed:
		return 50
	default:
		return 20
	}
}

// Options are inputs accepted by the agent entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// checker yields the decision for one cycle.
type checker interface {
	Check(ctx context.Context) (Decision, error)
}

// orchestrator performs the workload swap for an accepted update.
type orchestrator interface {
	Apply(ctx context.Context, manifest update.Manifest) error
	Ensure(ctx context.Context) error
}

// cycle holds the collaborators of one update cycle.
type cycle struct {
	decider checker
	orch    orchestrator
}

// Run executes exactly one update cycle and is the public entry point
// for the CLI. It is idempotent and safe to invoke on a fixed schedule.
func Run(ctx context.Context, opts *Options) (Outcome, error) {
	ctx = logger.WithName(ctx, "ota-agent")

	logger.DebugKV(ctx, "Starting update cycle", "build", version.Full())

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return OutcomeCheckFailed, err
	}

	key, err := trust.LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return OutcomeCheckFailed, err
	}

	lock := NewCycleLock(cfg.LockFile)

	if err = lock.Acquire(ctx); err != nil {
		if errors.Is(err, ErrLockBusy) {
			logger.Warn(ctx, "Another update cycle is running, exiting as a no-op")

			return OutcomeUpToDate, nil
		}

		return OutcomeStateFailed, &update.StateError{Op: "lock", Err: err}
	}

	defer lock.Release()

	var (
		fetcher  = artifact.NewHTTPSource(cfg.ArtifactBaseURL, cfg.Timeout)
		verifier = trust.NewVerifier(key)
		store    = state.NewFileStore(cfg.StateFile)
		runtime  = docker.NewCLI()
	)

	c := &cycle{
		decider: NewDecider(fetcher, verifier, store),
		orch: deploy.New(
			fetcher,
			verifier,
			runtime,
			store,
			cfg.Workload,
			artifact.BundleName(cfg.ImageName),
			cfg.SettleInterval,
		),
	}

	outcome, err := c.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Update cycle failed", "outcome", outcome, "error", err)

		return outcome, err
	}

	logger.InfoKV(ctx, "Update cycle finished", "outcome", outcome)

	return outcome, nil
}

// run executes the decision and rollout stages of one cycle.
func (c *cycle) run(ctx context.Context) (Outcome, error) {
	decision, err := c.decider.Check(ctx)

	switch decision.Result {
	case ResultUpdateAvailable:
		if err = c.orch.Apply(ctx, decision.Remote); err != nil {
			return classify(err, OutcomeRuntimeFailed), err
		}

		return OutcomeUpdated, nil
	case ResultUpToDate:
		// Still make sure the installed workload is serving.
		if err = c.orch.Ensure(ctx); err != nil {
			return classify(err, OutcomeRuntimeFailed), err
		}

		return OutcomeUpToDate, nil
	default:
		return classify(err, OutcomeCheckFailed), err
	}
}

// classify maps an error onto its outcome class, falling back to the
// provided default for errors outside the four kinds (such as a
// cancelled context).
func classify(err error, fallback Outcome) Outcome {
	var (
		fetchErr   *update.FetchError
		verifyErr  *update.VerificationError
		runtimeErr *update.RuntimeError
		stateErr   *update.StateError
	)

	switch {
	case errors.As(err, &verifyErr):
		return OutcomeVerificationFailed
	case errors.As(err, &fetchErr):
		return OutcomeCheckFailed
	case errors.As(err, &runtimeErr):
		return OutcomeRuntimeFailed
	case errors.As(err, &stateErr):
		return OutcomeStateFailed
	default:
		return fallback
	}
}

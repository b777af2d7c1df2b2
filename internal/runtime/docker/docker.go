package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/iot-ota/edge-agent/internal/domain/update"
)

// Runtime is the container runtime boundary the orchestrator drives.
// Load hands the image reference back as a direct return value; nothing
// downstream discovers it by listing runtime state.
type Runtime interface {
	// Load imports an image bundle and returns its image reference.
	Load(ctx context.Context, bundle []byte) (string, error)
	// Start creates and starts a unit under the given name, returning
	// the opaque runtime handle of the new unit.
	Start(ctx context.Context, name, imageRef string) (string, error)
	// StartExisting starts a unit that already exists but is stopped.
	StartExisting(ctx context.Context, id string) error
	// Stop stops a running unit.
	Stop(ctx context.Context, id string) error
	// Remove deletes a stopped unit.
	Remove(ctx context.Context, id string) error
	// Rename relabels a unit to a new name.
	Rename(ctx context.Context, id, name string) error
	// Lookup resolves a unit by name. A missing unit is (nil, nil).
	Lookup(ctx context.Context, name string) (*update.DeploymentUnit, error)
}

var (
	// errNoLoadedImage is returned when docker load reports no image reference.
	errNoLoadedImage = errors.New("no loaded image reference in output")
	// errBadInspectOutput is returned when docker inspect output cannot be split.
	errBadInspectOutput = errors.New("unexpected inspect output format")
)

// inspectFormat extracts the handle, lifecycle state and image of one
// container in a fixed machine-readable line.
const inspectFormat = "{{.Id}}|{{.State.Status}}|{{.Config.Image}}"

// commandRunner executes one runtime binary invocation and returns its
// stdout. Tests substitute a recorder; production uses execRun.
type commandRunner func(ctx context.Context, stdin []byte, args ...string) (string, error)

// CLI drives the container runtime through the docker binary.
type CLI struct {
	// bin is the runtime binary name.
	bin string
	// run executes one invocation.
	run commandRunner
}

// NewCLI returns a runtime backed by the docker binary on PATH.
func NewCLI() *CLI {
	c := &CLI{bin: "docker"}
	c.run = c.execRun

	return c
}

// execRun runs the docker binary, feeding stdin when provided.
// Stderr is folded into the returned error.
func (c *CLI) execRun(ctx context.Context, stdin []byte, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s %s: %w: %s",
			c.bin, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// Load imports the bundle via stdin and returns the loaded image
// reference parsed from the runtime's single result line.
func (c *CLI) Load(ctx context.Context, bundle []byte) (string, error) {
	output, err := c.run(ctx, bundle, "load", "--quiet")
	if err != nil {
		return "", &update.RuntimeError{Op: "load", Err: err}
	}

	imageRef, err := parseLoadedImage(output)
	if err != nil {
		return "", &update.RuntimeError{Op: "load", Err: err}
	}

	return imageRef, nil
}

// parseLoadedImage extracts the image reference from docker load output,
// e.g. "Loaded image: sensor-app:1.0".
func parseLoadedImage(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		for _, prefix := range []string{"Loaded image:", "Loaded image ID:"} {
			if rest, found := strings.CutPrefix(line, prefix); found {
				if ref := strings.TrimSpace(rest); ref != "" {
					return ref, nil
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %q", errNoLoadedImage, strings.TrimSpace(output))
}

// Start creates a detached, restart-always unit and returns its handle.
func (c *CLI) Start(ctx context.Context, name, imageRef string) (string, error) {
	output, err := c.run(ctx, nil, "run", "-d", "--restart", "always", "--name", name, imageRef)
	if err != nil {
		return "", &update.RuntimeError{Op: "start", Err: err}
	}

	return strings.TrimSpace(output), nil
}

// StartExisting starts a stopped unit in place.
func (c *CLI) StartExisting(ctx context.Context, id string) error {
	if _, err := c.run(ctx, nil, "start", id); err != nil {
		return &update.RuntimeError{Op: "start", Err: err}
	}

	return nil
}

// Stop stops a running unit.
func (c *CLI) Stop(ctx context.Context, id string) error {
	if _, err := c.run(ctx, nil, "stop", id); err != nil {
		return &update.RuntimeError{Op: "stop", Err: err}
	}

	return nil
}

// Remove deletes a stopped unit.
func (c *CLI) Remove(ctx context.Context, id string) error {
	if _, err := c.run(ctx, nil, "rm", id); err != nil {
		return &update.RuntimeError{Op: "remove", Err: err}
	}

	return nil
}

// Rename relabels a unit.
func (c *CLI) Rename(ctx context.Context, id, name string) error {
	if _, err := c.run(ctx, nil, "rename", id, name); err != nil {
		return &update.RuntimeError{Op: "rename", Err: err}
	}

	return nil
}

// Lookup resolves a unit by name via inspect with a fixed format.
// A unit the runtime does not know is reported as absent, not an error.
func (c *CLI) Lookup(ctx context.Context, name string) (*update.DeploymentUnit, error) {
	output, err := c.run(ctx, nil, "inspect", "--format", inspectFormat, name)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, &update.RuntimeError{Op: "inspect", Err: err}
	}

	parts := strings.Split(strings.TrimSpace(output), "|")
	if len(parts) != 3 {
		return nil, &update.RuntimeError{
			Op:  "inspect",
			Err: fmt.Errorf("%w: %q", errBadInspectOutput, strings.TrimSpace(output)),
		}
	}

	return &update.DeploymentUnit{
		ID:       parts[0],
		Name:     name,
		ImageRef: parts[2],
		Status:   statusFromRuntime(parts[1]),
	}, nil
}

// isNotFound recognizes the runtime's missing-object answer.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "no such object") || strings.Contains(msg, "no such container")
}

// statusFromRuntime maps the runtime's lifecycle strings onto unit statuses.
func statusFromRuntime(s string) update.UnitStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running":
		return update.UnitRunning
	case "created", "restarting":
		return update.UnitStarting
	case "removing":
		return update.UnitStopping
	default:
		// exited, paused, dead.
		return update.UnitStopped
	}
}

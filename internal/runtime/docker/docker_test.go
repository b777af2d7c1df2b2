package docker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iot-ota/edge-agent/internal/domain/update"
)

// recordedCall captures one runtime invocation made through the fake runner.
type recordedCall struct {
	stdin []byte
	args  []string
}

// fakeRunner scripts runtime answers per leading subcommand and records calls.
type fakeRunner struct {
	calls   []recordedCall
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) run(_ context.Context, stdin []byte, args ...string) (string, error) {
	f.calls = append(f.calls, recordedCall{stdin: stdin, args: args})

	key := args[0]
	if err, ok := f.errs[key]; ok {
		return "", err
	}

	return f.outputs[key], nil
}

func newFakeCLI(runner *fakeRunner) *CLI {
	return &CLI{bin: "docker", run: runner.run}
}

// TestCLI_Load feeds the bundle via stdin and returns the image
// reference parsed from the result line.
func TestCLI_Load(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"load": "Loaded image: sensor-app:1.0\n",
	}}
	cli := newFakeCLI(runner)

	imageRef, err := cli.Load(context.Background(), []byte("bundle bytes"))
	require.NoError(t, err)
	require.Equal(t, "sensor-app:1.0", imageRef)

	require.Len(t, runner.calls, 1)
	require.Equal(t, []string{"load", "--quiet"}, runner.calls[0].args)
	require.Equal(t, []byte("bundle bytes"), runner.calls[0].stdin)
}

// TestCLI_Load_NoReference rejects output without a loaded image line.
func TestCLI_Load_NoReference(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{"load": "\n"}}
	cli := newFakeCLI(runner)

	var runtimeErr *update.RuntimeError

	_, err := cli.Load(context.Background(), []byte("bundle"))
	require.Error(t, err)
	require.True(t, errors.As(err, &runtimeErr))
	require.Equal(t, "load", runtimeErr.Op)
}

// TestCLI_Start builds the detached restart-always invocation and
// returns the trimmed unit handle.
func TestCLI_Start(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"run": "0123456789abcdef\n",
	}}
	cli := newFakeCLI(runner)

	id, err := cli.Start(context.Background(), "sensor_ota_app", "sensor-app:1.0")
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", id)

	require.Equal(t,
		[]string{"run", "-d", "--restart", "always", "--name", "sensor_ota_app", "sensor-app:1.0"},
		runner.calls[0].args)
}

// TestCLI_Lookup parses the fixed inspect format and maps statuses.
func TestCLI_Lookup(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"inspect": "abc123|running|sensor-app:1.0\n",
	}}
	cli := newFakeCLI(runner)

	unit, err := cli.Lookup(context.Background(), "sensor_ota_app")
	require.NoError(t, err)
	require.Equal(t, "abc123", unit.ID)
	require.Equal(t, "sensor_ota_app", unit.Name)
	require.Equal(t, "sensor-app:1.0", unit.ImageRef)
	require.Equal(t, update.UnitRunning, unit.Status)
	require.True(t, unit.Running())

	require.Equal(t,
		[]string{"inspect", "--format", inspectFormat, "sensor_ota_app"},
		runner.calls[0].args)
}

// TestCLI_Lookup_Absent maps the runtime's missing-object answer to (nil, nil).
func TestCLI_Lookup_Absent(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{errs: map[string]error{
		"inspect": errors.New(`docker inspect: exit status 1: Error: No such object: sensor_ota_app`),
	}}
	cli := newFakeCLI(runner)

	unit, err := cli.Lookup(context.Background(), "sensor_ota_app")
	require.NoError(t, err)
	require.Nil(t, unit)
	require.False(t, unit.Running())
}

// TestCLI_Lookup_Failure keeps genuine runtime failures as RuntimeError.
func TestCLI_Lookup_Failure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{errs: map[string]error{
		"inspect": errors.New("docker inspect: cannot connect to the Docker daemon"),
	}}
	cli := newFakeCLI(runner)

	var runtimeErr *update.RuntimeError

	_, err := cli.Lookup(context.Background(), "sensor_ota_app")
	require.Error(t, err)
	require.True(t, errors.As(err, &runtimeErr))
}

// TestStatusFromRuntime covers the lifecycle string mapping.
func TestStatusFromRuntime(t *testing.T) {
	t.Parallel()

	cases := map[string]update.UnitStatus{
		"running":    update.UnitRunning,
		"created":    update.UnitStarting,
		"restarting": update.UnitStarting,
		"removing":   update.UnitStopping,
		"exited":     update.UnitStopped,
		"dead":       update.UnitStopped,
		"paused":     update.UnitStopped,
	}
	for in, want := range cases {
		require.Equal(t, want, statusFromRuntime(in), in)
	}
}

// TestParseLoadedImage accepts both reference and ID result lines.
func TestParseLoadedImage(t *testing.T) {
	t.Parallel()

	ref, err := parseLoadedImage("Loaded image: sensor-app:1.0\n")
	require.NoError(t, err)
	require.Equal(t, "sensor-app:1.0", ref)

	ref, err = parseLoadedImage("Loaded image ID: sha256:deadbeef\n")
	require.NoError(t, err)
	require.Equal(t, "sha256:deadbeef", ref)

	_, err = parseLoadedImage("")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "no loaded image"))
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the per-device parameters driving one update cycle.
// One settings file replaces the per-deployment generated scripts:
// everything that used to be baked into a script variant is a field here.
type Config struct {
	// ArtifactBaseURL is the location artifacts are fetched from by name,
	// e.g. an S3 object URL prefix or a static HTTP folder.
	ArtifactBaseURL string `yaml:"artifact_base_url"`
	// ImageName is the base name of the image bundle; the bundle artifact
	// is "<image_name>.tar" and its signature "<image_name>.tar.sig".
	ImageName string `yaml:"image_name"`
	// Workload is the canonical container name for the running service.
	// Defaults to "<image_name>_ota_app" when empty.
	Workload string `yaml:"workload"`
	// PublicKeyPath is the PEM-encoded trust anchor used to verify
	// the manifest and the image bundle.
	PublicKeyPath string `yaml:"public_key"`
	// StateFile is the path of the manifest recording the last
	// successfully installed version.
	StateFile string `yaml:"state_file"`
	// LockFile is the path of the host-scoped cycle lock marker.
	LockFile string `yaml:"lock_file"`
	// SettleInterval bounds the dual-run window during a rolling swap.
	SettleInterval time.Duration `yaml:"settle_interval"`
	// Timeout is the per-request duration for artifact fetches.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for agent settings.
	DefaultConfigFilename = "ota-agent-settings.yaml"

	// DefaultPublicKeyFilename is the default trust anchor filename.
	DefaultPublicKeyFilename = "ota_public.pem"

	// DefaultStateFilename is the default filename for the installed-version manifest.
	DefaultStateFilename = "ota-agent-version.yaml"

	// DefaultLockFilename is the default filename for the cycle lock marker.
	DefaultLockFilename = "ota-agent-cycle.lock"

	// DefaultSettleInterval is how long old and new units run side by side.
	DefaultSettleInterval = 2 * time.Second

	// DefaultTimeout is the default duration for artifact fetches.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for agent files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errArtifactBaseRequired is returned when the artifact base URL is missing.
	errArtifactBaseRequired = errors.New("artifact base URL must be provided")
	// errImageNameRequired is returned when the image name is missing.
	errImageNameRequired = errors.New("image name must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields
// and fills in defaults for the optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ArtifactBaseURL == "" {
		return errArtifactBaseRequired
	}

	if _, err := url.ParseRequestURI(cfg.ArtifactBaseURL); err != nil {
		return fmt.Errorf("invalid artifact base URL: %w", err)
	}

	if cfg.ImageName == "" {
		return errImageNameRequired
	}

	if cfg.Workload == "" {
		cfg.Workload = cfg.ImageName + "_ota_app"
	}

	if cfg.PublicKeyPath == "" {
		cfg.PublicKeyPath = DefaultPublicKeyFilename
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = DefaultSettleInterval
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}

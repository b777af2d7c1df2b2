package update

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Ordering is the result of comparing two manifests.
type Ordering int

const (
	// Older means the receiver was built before the argument.
	Older Ordering = iota - 1
	// Same means both manifests name the same build instant.
	Same
	// Newer means the receiver was built after the argument.
	Newer
)

// String returns a human-readable ordering name for logs.
func (o Ordering) String() string {
	switch o {
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return "same"
	}
}

// Manifest is the published record naming a build by its timestamp.
// It is an immutable value: a new release always produces a new Manifest.
// The zero value compares older than any real build and stands for
// "never installed".
type Manifest struct {
	// LastBuild is the build instant, UTC, second precision.
	LastBuild time.Time
}

// manifestDoc is the YAML wire form of a manifest.
type manifestDoc struct {
	LastBuild string `yaml:"last_build"`
}

// MarshalYAML renders the timestamp as a double-quoted scalar so the
// emitted line stays byte-compatible with the shell-side consumers
// that grep for `last_build: "<ts>"`.
func (d manifestDoc) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "last_build"},
			{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: d.LastBuild},
		},
	}, nil
}

// ParseManifest decodes manifest bytes.
// The last_build field must be present and a valid RFC 3339 UTC timestamp;
// anything else yields a ParseError.
func ParseManifest(data []byte) (Manifest, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Manifest{}, &ParseError{Err: fmt.Errorf("decode manifest: %w", err)}
	}

	if doc.LastBuild == "" {
		return Manifest{}, &ParseError{Err: errLastBuildMissing}
	}

	ts, err := time.Parse(time.RFC3339, doc.LastBuild)
	if err != nil {
		return Manifest{}, &ParseError{Err: fmt.Errorf("parse last_build: %w", err)}
	}

	return Manifest{LastBuild: ts.UTC().Truncate(time.Second)}, nil
}

// Serialize encodes the manifest into its single-line YAML wire form.
func (m Manifest) Serialize() ([]byte, error) {
	doc := manifestDoc{
		LastBuild: m.LastBuild.UTC().Format(time.RFC3339),
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return data, nil
}

// Compare orders manifests by build instant, never by string form.
func (m Manifest) Compare(other Manifest) Ordering {
	a, b := m.LastBuild.UTC(), other.LastBuild.UTC()

	switch {
	case a.Before(b):
		return Older
	case a.After(b):
		return Newer
	default:
		return Same
	}
}

// IsZero reports whether the manifest carries no build instant,
// i.e. no version has ever been installed.
func (m Manifest) IsZero() bool {
	return m.LastBuild.IsZero()
}

// SignedArtifact pairs fetched bytes with their detached signature.
// The bytes must never be consumed before the signature verifies.
type SignedArtifact struct {
	Bytes     []byte
	Signature []byte
}

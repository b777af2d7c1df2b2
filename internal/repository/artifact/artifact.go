package artifact

import (
	"context"

	"github.com/iot-ota/edge-agent/internal/domain/update"
)

const (
	// ManifestName is the published manifest artifact name.
	ManifestName = "version.yaml"

	// SignatureSuffix is appended to an artifact name to form the name
	// of its detached signature.
	SignatureSuffix = ".sig"
)

// BundleName returns the image bundle artifact name for an image.
func BundleName(imageName string) string {
	return imageName + ".tar"
}

// Fetcher retrieves named byte blobs from the content source.
// It is a pure I/O boundary: no verification, no interpretation.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetchSigned retrieves an artifact together with its detached
// signature. The pair is returned unverified; callers must run it
// through the verifier before consuming the bytes.
func FetchSigned(ctx context.Context, f Fetcher, name string) (update.SignedArtifact, error) {
	contents, err := f.Fetch(ctx, name)
	if err != nil {
		return update.SignedArtifact{}, err
	}

	signature, err := f.Fetch(ctx, name+SignatureSuffix)
	if err != nil {
		return update.SignedArtifact{}, err
	}

	return update.SignedArtifact{
		Bytes:     contents,
		Signature: signature,
	}, nil
}

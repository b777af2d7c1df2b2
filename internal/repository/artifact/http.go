package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/iot-ota/edge-agent/internal/domain/update"
)

// errBadHTTPStatus is returned when the content source answers anything
// but 200 OK.
var errBadHTTPStatus = errors.New("unexpected http status")

// HTTPSource fetches artifacts by name from a base URL, such as a
// public S3 object prefix or a static HTTP folder.
type HTTPSource struct {
	// baseURL is the folder all artifact names are resolved against.
	baseURL string
	// client is the HTTP client with the per-request timeout applied.
	client *http.Client
}

// NewHTTPSource returns a source rooted at baseURL. A non-positive
// timeout leaves the client without one, deferring to the transport.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	client := &http.Client{}
	if timeout > 0 {
		client.Timeout = timeout
	}

	return &HTTPSource{
		baseURL: baseURL,
		client:  client,
	}
}

// Fetch retrieves one named blob. All failures, including non-200
// answers, are reported as FetchError: transient, nothing mutated,
// eligible for retry on the next cycle.
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	finalURL, err := s.artifactURL(name)
	if err != nil {
		return nil, &update.FetchError{Name: name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, &update.FetchError{Name: name, Err: err}
	}

	response, err := s.client.Do(req)
	if err != nil {
		return nil, &update.FetchError{Name: name, Err: err}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, &update.FetchError{
			Name: name,
			Err:  fmt.Errorf("%s: %s: %w", finalURL, response.Status, errBadHTTPStatus),
		}
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &update.FetchError{Name: name, Err: err}
	}

	return contents, nil
}

// artifactURL joins the base URL and the artifact name, normalizing
// duplicate slashes in the path.
func (s *HTTPSource) artifactURL(name string) (string, error) {
	parsed, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}

	parsed.Path = path.Join(parsed.Path, name)

	return parsed.String(), nil
}

package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iot-ota/edge-agent/internal/domain/update"
)

// newBlobServer serves the provided blobs under /updates/<name>.
func newBlobServer(t *testing.T, blobs map[string][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	for name, contents := range blobs {
		contents := contents
		mux.HandleFunc("/updates/"+name, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(contents)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// TestHTTPSource_Fetch covers the happy path and the missing-artifact case.
func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()

	server := newBlobServer(t, map[string][]byte{
		"version.yaml": []byte(`last_build: "2024-05-01T10:30:00Z"`),
	})

	source := NewHTTPSource(server.URL+"/updates", time.Second)

	contents, err := source.Fetch(context.Background(), "version.yaml")
	require.NoError(t, err)
	require.Contains(t, string(contents), "last_build")

	var fetchErr *update.FetchError

	_, err = source.Fetch(context.Background(), "missing.tar")
	require.Error(t, err)
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "missing.tar", fetchErr.Name)
}

// TestHTTPSource_Unreachable reports transport failures as FetchError too.
func TestHTTPSource_Unreachable(t *testing.T) {
	t.Parallel()

	source := NewHTTPSource("http://127.0.0.1:1/updates", 200*time.Millisecond)

	var fetchErr *update.FetchError

	_, err := source.Fetch(context.Background(), "version.yaml")
	require.Error(t, err)
	require.True(t, errors.As(err, &fetchErr))
}

// TestFetchSigned pairs an artifact with its detached signature and
// fails when either half is missing.
func TestFetchSigned(t *testing.T) {
	t.Parallel()

	server := newBlobServer(t, map[string][]byte{
		"sensor-app.tar":     []byte("bundle"),
		"sensor-app.tar.sig": []byte("signature"),
		"unsigned.tar":       []byte("bundle"),
	})

	source := NewHTTPSource(server.URL+"/updates", time.Second)

	signed, err := FetchSigned(context.Background(), source, BundleName("sensor-app"))
	require.NoError(t, err)
	require.Equal(t, []byte("bundle"), signed.Bytes)
	require.Equal(t, []byte("signature"), signed.Signature)

	_, err = FetchSigned(context.Background(), source, "unsigned.tar")
	require.Error(t, err)

	var fetchErr *update.FetchError

	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "unsigned.tar"+SignatureSuffix, fetchErr.Name)
}

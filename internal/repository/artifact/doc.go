// Package artifact retrieves named deployment artifacts from the remote
// content source.
//
// The Fetcher interface is the agent's only transport boundary; the
// shipped implementation fetches over HTTP(S), which covers both static
// folders and public S3 object URLs. FetchSigned pairs an artifact with
// its detached signature for later verification.
package artifact

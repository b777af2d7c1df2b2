// Package docker adapts the container runtime behind the Runtime
// interface the deployment orchestrator drives.
//
// The shipped implementation shells out to the docker binary; the
// interface keeps a daemon-API implementation substitutable without
// touching the orchestrator.
package docker

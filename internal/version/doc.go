// Package version carries the build metadata of the OTA agent binary.
//
// Version, Commit and BuildTime are stamped through ldflags by the
// release build; a local `go build` keeps the defaults. Fleet operators
// read them through `ota-agent version` when correlating device logs
// with a rollout.
package version

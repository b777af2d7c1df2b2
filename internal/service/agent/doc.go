// Package agent runs one OTA update cycle end to end: take the
// host-scoped cycle lock, decide whether the published build is newer
// than the installed one, and either ensure the installed workload is
// serving or hand the verified manifest to the deployment orchestrator.
//
// The cycle is sequential; the only concurrency in the design is the
// bounded dual-run window inside the orchestrator's rolling swap.
package agent

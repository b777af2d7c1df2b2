// Package deploy performs the blue/green swap of the running workload.
//
// The Orchestrator is invoked only for an update that has already been
// decided and whose manifest has already been verified; it fetches and
// verifies the image bundle itself, keeps the old unit serving until
// the new one is confirmed started, and commits the installed version
// strictly after the canonical identity swap.
package deploy

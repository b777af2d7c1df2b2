// Package state persists the manifest of the last successfully
// installed version, the single source of truth across agent restarts.
//
// FileStore commits with temp-file-and-rename semantics so the record
// is always either the previous valid manifest or the new one, never a
// torn write.
package state

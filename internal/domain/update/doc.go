// Package update contains the core domain types of the OTA agent.
//
// It defines Manifest (the published build record, totally ordered by
// timestamp), SignedArtifact (bytes plus detached signature),
// DeploymentUnit (one runtime instance of the workload) and the error
// kinds the agent surfaces to operators: ParseError, FetchError,
// VerificationError, RuntimeError and StateError.
package update

// Package config defines the agent settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type names the artifact base URL, the image bundle, the
// canonical workload, the trust anchor and the local state paths.
package config

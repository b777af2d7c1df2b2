// Package trust holds the verification side of the artifact signing
// scheme: loading the device's trust anchor (a single PEM public key)
// and checking detached signatures over fetched artifacts.
//
// The publish side signs a SHA-256 digest with the private key; this
// package never sees private key material.
package trust

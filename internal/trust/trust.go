package trust

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrInvalidSignature is returned when a signature does not verify
	// against the payload and the trust anchor. Malformed signatures and
	// payloads report the same error: they are invalid, not a transport
	// failure.
	ErrInvalidSignature = errors.New("signature is not valid")

	// errNoPEMData is returned when the key file contains no PEM block.
	errNoPEMData = errors.New("no PEM data found")
)

// LoadPublicKey reads a PEM-encoded public key from disk. Both PKIX
// ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") encodings are accepted.
// The key is the trust anchor: loaded once at agent start, read-only
// for the process lifetime.
func LoadPublicKey(path string) (crypto.PublicKey, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, errNoPEMData)
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#1 public key: %w", err)
		}

		return key, nil
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX public key: %w", err)
		}

		return key, nil
	}
}

// Verifier validates detached signatures against a single public key.
// Verification is deterministic and side-effect free.
type Verifier struct {
	key crypto.PublicKey
}

// NewVerifier returns a verifier bound to the provided trust anchor.
func NewVerifier(key crypto.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// Verify checks the detached signature over payload. The payload is
// digested with SHA-256 and the signature checked per key type:
// RSA accepts PKCS#1 v1.5 over the bare digest (openssl pkeyutl signs
// the pre-hashed digest without a DigestInfo prefix), PKCS#1 v1.5 with
// DigestInfo and PSS as fallbacks, ECDSA expects ASN.1 encoding,
// Ed25519 signs the raw payload. Any mismatch, including malformed
// input, yields ErrInvalidSignature.
func (v *Verifier) Verify(payload, signature []byte) error {
	switch key := v.key.(type) {
	case *rsa.PublicKey:
		digest := sha256.Sum256(payload)
		if err := rsa.VerifyPKCS1v15(key, crypto.Hash(0), digest[:], signature); err == nil {
			return nil
		}

		if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature); err == nil {
			return nil
		}

		if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil); err == nil {
			return nil
		}

		return ErrInvalidSignature
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(payload)
		if !ecdsa.VerifyASN1(key, digest[:], signature) {
			return ErrInvalidSignature
		}

		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(key, payload, signature) {
			return ErrInvalidSignature
		}

		return nil
	default:
		return fmt.Errorf("unsupported public key type %T: %w", v.key, ErrInvalidSignature)
	}
}

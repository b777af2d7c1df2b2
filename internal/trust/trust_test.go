package trust

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// signRSA produces a PKCS#1 v1.5 signature over a SHA-256 digest in the
// DigestInfo-prefixed form, as `openssl dgst -sign` emits.
func signRSA(t *testing.T, key *rsa.PrivateKey, payload []byte) []byte {
	t.Helper()

	digest := sha256.Sum256(payload)

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	return sig
}

// signRSARawDigest produces the publish-side signature form: PKCS#1 v1.5
// padding over the bare 32-byte digest with no DigestInfo prefix, which
// is what `openssl pkeyutl -sign` emits when handed a pre-hashed file.
func signRSARawDigest(t *testing.T, key *rsa.PrivateKey, payload []byte) []byte {
	t.Helper()

	digest := sha256.Sum256(payload)

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.Hash(0), digest[:])
	require.NoError(t, err)

	return sig
}

// TestVerify_RSA covers the genuine triple and single-byte mutations of
// payload and signature.
func TestVerify_RSA(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	payload := []byte(`last_build: "2024-05-01T10:30:00Z"` + "\n")
	sig := signRSA(t, key, payload)

	v := NewVerifier(&key.PublicKey)
	require.NoError(t, v.Verify(payload, sig))

	// One flipped payload byte.
	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01
	require.ErrorIs(t, v.Verify(mutated, sig), ErrInvalidSignature)

	// One flipped signature byte.
	badSig := append([]byte(nil), sig...)
	badSig[10] ^= 0x01
	require.ErrorIs(t, v.Verify(payload, badSig), ErrInvalidSignature)

	// Garbage signature is invalid, not a crash.
	require.ErrorIs(t, v.Verify(payload, []byte("garbage")), ErrInvalidSignature)
	require.ErrorIs(t, v.Verify(payload, nil), ErrInvalidSignature)
}

// TestVerify_RSARawDigest accepts the pre-hashed pkeyutl signature form
// the publish pipeline actually produces.
func TestVerify_RSARawDigest(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	payload := []byte(`last_build: "2024-05-01T10:30:00Z"` + "\n")
	sig := signRSARawDigest(t, key, payload)

	v := NewVerifier(&key.PublicKey)
	require.NoError(t, v.Verify(payload, sig))

	// Mutated payload still fails in this form.
	mutated := append([]byte(nil), payload...)
	mutated[len(mutated)-2] ^= 0x01
	require.ErrorIs(t, v.Verify(mutated, sig), ErrInvalidSignature)
}

// TestVerify_Ed25519 checks the raw-payload scheme used by ed25519 anchors.
func TestVerify_Ed25519(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload := []byte("bundle bytes")
	sig := ed25519.Sign(priv, payload)

	v := NewVerifier(pub)
	require.NoError(t, v.Verify(payload, sig))
	require.ErrorIs(t, v.Verify([]byte("bundle byteZ"), sig), ErrInvalidSignature)
}

// TestVerify_WrongKey ensures signatures from a different key never pass.
func TestVerify_WrongKey(t *testing.T) {
	t.Parallel()

	signer, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	payload := []byte("payload")
	sig := signRSA(t, signer, payload)

	v := NewVerifier(&other.PublicKey)
	require.ErrorIs(t, v.Verify(payload, sig), ErrInvalidSignature)
}

// TestLoadPublicKey checks PEM loading in both accepted encodings.
func TestLoadPublicKey(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()

	// PKIX, the form `openssl rsa -pubout` writes.
	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pkixPath := filepath.Join(dir, "ota_public.pem")
	require.NoError(t, os.WriteFile(pkixPath, pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pkix,
	}), 0o600))

	loaded, err := LoadPublicKey(pkixPath)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(loaded.(*rsa.PublicKey)))

	// PKCS#1.
	pkcs1Path := filepath.Join(dir, "pkcs1.pem")
	require.NoError(t, os.WriteFile(pkcs1Path, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	}), 0o600))

	loaded, err = LoadPublicKey(pkcs1Path)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(loaded.(*rsa.PublicKey)))

	// Not PEM at all.
	badPath := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(badPath, []byte("not a key"), 0o600))

	_, err = LoadPublicKey(badPath)
	require.Error(t, err)

	// Missing file.
	_, err = LoadPublicKey(filepath.Join(dir, "missing.pem"))
	require.Error(t, err)
}

// Package crypto implements the signature primitives the wire protocol
// relies on: SHA-256 hashing of canonical JSON encodings, RSA-2048 key-pair
// generation, and detached RSA-SHA256 sign/verify.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"

	"github.com/pkg/errors"
)

const RSAKeyBits = 2048

// Sha256Hex returns the lowercase-hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha256 returns the raw SHA-256 digest of data.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// RandomHex returns n random bytes encoded as lowercase hex, used for
// transaction/identity ids (128 bits for identities, 256 bits for
// transactions per spec).
func RandomHex(nbytes int) (string, error) {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "crypto: reading random bytes")
	}
	return hex.EncodeToString(buf), nil
}

// GenerateKeyPair creates a new RSA-2048 key pair and returns both halves
// PEM-encoded, the wire-stable shape Identity and Transaction use.
func GenerateKeyPair() (publicPEM string, privatePEM string, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return "", "", errors.Wrap(err, "crypto: generating RSA key pair")
	}

	privBytes := x509.MarshalPKCS1PrivateKey(priv)
	privBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes}
	privatePEM = string(pem.EncodeToMemory(privBlock))

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", errors.Wrap(err, "crypto: marshalling RSA public key")
	}
	pubBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}
	publicPEM = string(pem.EncodeToMemory(pubBlock))

	return publicPEM, privatePEM, nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("crypto: invalid PEM public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: parsing PKIX public key")
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("crypto: public key is not RSA")
	}
	return rsaKey, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key.
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("crypto: invalid PEM private key")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: parsing PKCS1 private key")
	}
	return key, nil
}

// Sign produces a detached RSA-SHA256 signature (PKCS1v15) over data,
// returned as lowercase hex, matching the Transaction.signature wire shape.
func Sign(data []byte, privatePEM string) (string, error) {
	key, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "crypto: signing")
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a detached hex-encoded RSA-SHA256 signature over data
// against a PEM-encoded public key. Never panics on malformed input -
// callers hand this adversarial wire data.
func Verify(data []byte, signatureHex string, publicPEM string) bool {
	key, err := ParsePublicKey(publicPEM)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil
}

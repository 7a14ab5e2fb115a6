package accounts

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"strings"

	"github.com/ledgerd/ledgerd/log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

var logger = log.NewModuleLogger(log.Accounts)

const (
	pbkdf2Iterations = 100000
	saltSize         = 16
	ivSize           = 12
	keySize          = 32

	minPasswordLength = 8
)

// Store is a single encrypted identity file: one Identity per store, per
// spec.md §6's "encrypted file of JSON-encoded identities" (one wallet =
// one identity, per the CLI surface of §6). The on-disk record format is
// hex(salt):hex(iv):hex(auth_tag):hex(ciphertext), AES-256-GCM keyed by
// PBKDF2-SHA256 over the password.
type Store struct {
	path string
}

// Open returns a handle to the encrypted identity file at path. The file
// need not exist yet - Create makes it.
func Open(path string) *Store {
	return &Store{path: path}
}

// Create generates a fresh identity, encrypts it under password, and
// writes it to the store's path, failing if a file already exists there.
func Create(path, password string, nowMs int64) (*Identity, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("accounts: %s already exists", path)
	}

	identity, err := NewIdentity("", nowMs)
	if err != nil {
		return nil, err
	}
	s := Open(path)
	if err := s.save(identity, password); err != nil {
		return nil, err
	}
	return identity, nil
}

// Load decrypts and parses the identity from s's path using password.
// Failures here are Fatal-class per spec.md §7 ("corrupt identity store")
// since a CLI command cannot proceed without its wallet's key material.
func (s *Store) Load(password string) (*Identity, error) {
	raw, err := ioutil.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "accounts: reading identity store")
	}
	plaintext, err := decryptRecord(strings.TrimSpace(string(raw)), password)
	if err != nil {
		return nil, errors.Wrap(err, "accounts: decrypting identity store")
	}
	var identity Identity
	if err := json.Unmarshal(plaintext, &identity); err != nil {
		return nil, errors.Wrap(err, "accounts: parsing identity store")
	}
	return &identity, nil
}

// Save re-encrypts identity (e.g. after a Touch) and overwrites s's path.
func (s *Store) Save(identity *Identity, password string) error {
	return s.save(identity, password)
}

func (s *Store) save(identity *Identity, password string) error {
	record, err := encryptRecord(identity, password)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(s.path, []byte(record+"\n"), 0600); err != nil {
		return errors.Wrap(err, "accounts: writing identity store")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.Errorf("accounts: password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
}

func encryptRecord(identity *Identity, password string) (string, error) {
	plaintext, err := json.Marshal(identity)
	if err != nil {
		return "", errors.Wrap(err, "accounts: encoding identity")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "accounts: generating salt")
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "accounts: generating iv")
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return "", errors.Wrap(err, "accounts: constructing AES cipher")
	}
	gcm, err := cipher.NewGCMWithTagSize(block, aes.BlockSize)
	if err != nil {
		return "", errors.Wrap(err, "accounts: constructing GCM")
	}
	// Seal appends the tag to the ciphertext; split it back out so the
	// on-disk record keeps ciphertext and tag as distinct hex fields.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	fields := []string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}
	return strings.Join(fields, ":"), nil
}

func decryptRecord(record, password string) ([]byte, error) {
	parts := strings.Split(record, ":")
	if len(parts) != 4 {
		return nil, errors.New("accounts: malformed identity record")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errors.Wrap(err, "accounts: decoding salt")
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, "accounts: decoding iv")
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, errors.Wrap(err, "accounts: decoding auth tag")
	}
	ciphertext, err := hex.DecodeString(parts[3])
	if err != nil {
		return nil, errors.Wrap(err, "accounts: decoding ciphertext")
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, errors.Wrap(err, "accounts: constructing AES cipher")
	}
	gcm, err := cipher.NewGCMWithTagSize(block, aes.BlockSize)
	if err != nil {
		return nil, errors.Wrap(err, "accounts: constructing GCM")
	}
	sealed := append(ciphertext, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "accounts: authentication failed (wrong password or corrupt file)")
	}
	return plaintext, nil
}

// Package keystore provides encrypted storage for Dify app API keys.
package keystore

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// EnvPassphrase names the variable holding the keystore passphrase. When it
// is unset the master key is derived from the machine and user names.
const EnvPassphrase = "DIFY_KEYSTORE_PASSPHRASE"

// Keystore defines the interface for secure key storage.
type Keystore interface {
	// Set stores a key-value pair.
	Set(name, value string) error
	// Get retrieves a value by name. Returns error if not found.
	Get(name string) (string, error)
	// Delete removes a key by name.
	Delete(name string) error
	// List returns all stored key names.
	List() ([]string, error)
}

// ErrKeyNotFound is returned when a requested key does not exist.
type ErrKeyNotFound struct {
	Name string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Name
}

// MasterKeySource supplies the secret the file encryption key is derived from.
type MasterKeySource interface {
	MasterKey() ([]byte, error)
}

// Passphrase is a MasterKeySource backed by a fixed secret.
type Passphrase []byte

// MasterKey returns p.
func (p Passphrase) MasterKey() ([]byte, error) {
	if len(p) == 0 {
		return nil, errors.New("keystore: empty passphrase")
	}
	return []byte(p), nil
}

// MachineKey derives a master key from the host and user names. It keeps
// keys out of plain text but offers no protection against other processes
// of the same user; set EnvPassphrase for that.
type MachineKey struct{}

// MasterKey returns a hash of the host and user names.
func (MachineKey) MasterKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(hostname + ":" + username + ":dify-keystore"))
	return sum[:], nil
}

// DefaultSource returns the passphrase from EnvPassphrase when set, and
// MachineKey otherwise.
func DefaultSource() MasterKeySource {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return Passphrase(p)
	}
	return MachineKey{}
}

// DefaultKeystorePath returns the default keystore file path.
// - macOS/Linux: ~/.dify/keys.enc
// - Windows: %USERPROFILE%\.dify\keys.enc
func DefaultKeystorePath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "keys.enc"
	}

	return filepath.Join(homeDir, ".dify", "keys.enc")
}

// NewKeystore opens the default keystore with the default master key source.
func NewKeystore() (Keystore, error) {
	return NewFileKeystore(DefaultKeystorePath(), DefaultSource())
}

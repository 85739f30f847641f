package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/crypto/argon2"
)

// File format: [magic (4)] [version (1)] [salt (16)] [nonce (12)] [ciphertext]
const (
	magicHeader = "DIFY"
	version     = byte(0x01)
	saltLength  = 16
	nonceLength = 12
	headerLen   = len(magicHeader) + 1 + saltLength + nonceLength
)

// Argon2id parameters (OWASP recommended)
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// ErrCorrupt is returned when the keystore file is not in the expected format
// or cannot be decrypted with the current master key.
var ErrCorrupt = errors.New("keystore: file is corrupt or the master key is wrong")

// FileKeystore implements Keystore using encrypted file storage.
// Keys are stored in a JSON map encrypted with AES-256-GCM under a key
// derived with Argon2id from the master key and a per-write salt.
type FileKeystore struct {
	path      string
	masterKey []byte
	mu        sync.RWMutex
}

// NewFileKeystore opens the keystore at path. The file is created on the
// first Set.
func NewFileKeystore(path string, source MasterKeySource) (*FileKeystore, error) {
	masterKey, err := source.MasterKey()
	if err != nil {
		return nil, err
	}

	return &FileKeystore{
		path:      path,
		masterKey: masterKey,
	}, nil
}

// Path returns the file backing the keystore.
func (f *FileKeystore) Path() string {
	return f.path
}

// Set stores a key-value pair.
func (f *FileKeystore) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.loadData()
	if err != nil {
		return err
	}

	data[name] = value
	return f.saveData(data)
}

// Get retrieves a value by name.
func (f *FileKeystore) Get(name string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.loadData()
	if err != nil {
		return "", err
	}

	value, ok := data[name]
	if !ok {
		return "", &ErrKeyNotFound{Name: name}
	}

	return value, nil
}

// Delete removes a key by name.
func (f *FileKeystore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.loadData()
	if err != nil {
		return err
	}

	if _, ok := data[name]; !ok {
		return &ErrKeyNotFound{Name: name}
	}

	delete(data, name)
	return f.saveData(data)
}

// List returns all stored key names, sorted.
func (f *FileKeystore) List() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.loadData()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}

// loadData reads and decrypts the keystore file.
func (f *FileKeystore) loadData() (map[string]string, error) {
	data := make(map[string]string)

	ciphertext, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}

	if len(ciphertext) == 0 {
		return data, nil
	}

	plaintext, err := f.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return data, nil
}

// saveData encrypts the map and replaces the file atomically.
func (f *FileKeystore) saveData(data map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ciphertext, err := f.encrypt(plaintext)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".keys-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func deriveKey(masterKey, salt []byte) []byte {
	return argon2.IDKey(masterKey, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt seals plaintext with a fresh salt and nonce. The header is
// authenticated as additional data.
func (f *FileKeystore) encrypt(plaintext []byte) ([]byte, error) {
	header := make([]byte, 0, headerLen)
	header = append(header, magicHeader...)
	header = append(header, version)

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	header = append(header, salt...)
	header = append(header, nonce...)

	gcm, err := newGCM(deriveKey(f.masterKey, salt))
	if err != nil {
		return nil, err
	}
	return gcm.Seal(slices.Clone(header), nonce, plaintext, header), nil
}

func (f *FileKeystore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < headerLen ||
		string(ciphertext[:len(magicHeader)]) != magicHeader ||
		ciphertext[len(magicHeader)] != version {
		return nil, ErrCorrupt
	}

	offset := len(magicHeader) + 1
	salt := ciphertext[offset : offset+saltLength]
	offset += saltLength
	nonce := ciphertext[offset : offset+nonceLength]
	header := ciphertext[:headerLen]

	gcm, err := newGCM(deriveKey(f.masterKey, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext[headerLen:], header)
	if err != nil {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}

var _ Keystore = (*FileKeystore)(nil)

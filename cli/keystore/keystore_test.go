package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestKeystore(t *testing.T) *FileKeystore {
	t.Helper()
	ks, err := NewFileKeystore(filepath.Join(t.TempDir(), "keys.enc"), Passphrase("correct horse"))
	if err != nil {
		t.Fatalf("NewFileKeystore() error = %v", err)
	}
	return ks
}

func TestFileKeystoreSetAndGet(t *testing.T) {
	ks := newTestKeystore(t)

	if err := ks.Set("default", "app-test-key-12345"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, err := ks.Get("default")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "app-test-key-12345" {
		t.Errorf("Get() = %q, want app-test-key-12345", value)
	}
}

func TestFileKeystoreGetNotFound(t *testing.T) {
	ks := newTestKeystore(t)

	_, err := ks.Get("nonexistent")
	var notFound *ErrKeyNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("Get() error = %v, want *ErrKeyNotFound", err)
	}
	if notFound.Error() != "key not found: nonexistent" {
		t.Errorf("Error() = %q", notFound.Error())
	}
}

func TestFileKeystoreDelete(t *testing.T) {
	ks := newTestKeystore(t)

	if err := ks.Set("staging", "app-staging"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := ks.Delete("staging"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := ks.Get("staging"); err == nil {
		t.Error("Get() should fail after Delete()")
	}

	var notFound *ErrKeyNotFound
	if err := ks.Delete("staging"); !errors.As(err, &notFound) {
		t.Errorf("second Delete() error = %v, want *ErrKeyNotFound", err)
	}
}

func TestFileKeystoreList(t *testing.T) {
	ks := newTestKeystore(t)

	names, err := ks.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() on empty keystore returned %d items", len(names))
	}

	for _, name := range []string{"prod", "dev", "staging"} {
		if err := ks.Set(name, "key-"+name); err != nil {
			t.Fatalf("Set(%q) error = %v", name, err)
		}
	}

	names, err = ks.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	expected := []string{"dev", "prod", "staging"}
	if len(names) != len(expected) {
		t.Fatalf("List() = %v, want %v", names, expected)
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("List()[%d] = %q, want %q", i, name, expected[i])
		}
	}
}

func TestFileKeystorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")

	ks1, err := NewFileKeystore(path, Passphrase("s3cret"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ks1.Set("default", "persistent-key"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ks2, err := NewFileKeystore(path, Passphrase("s3cret"))
	if err != nil {
		t.Fatal(err)
	}
	value, err := ks2.Get("default")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "persistent-key" {
		t.Errorf("Get() = %q, want persistent-key", value)
	}

	wrong, err := NewFileKeystore(path, Passphrase("guess"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.Get("default"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get() with wrong passphrase error = %v, want ErrCorrupt", err)
	}
}

func TestFileKeystoreEncrypted(t *testing.T) {
	ks := newTestKeystore(t)

	secretKey := "app-this-should-be-encrypted"
	if err := ks.Set("default", secretKey); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	contents, err := os.ReadFile(ks.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if bytes.Contains(contents, []byte(secretKey)) {
		t.Error("file contains the plaintext key")
	}
	if !bytes.HasPrefix(contents, []byte(magicHeader)) {
		t.Errorf("file does not start with %q", magicHeader)
	}
}

func TestFileKeystoreTampered(t *testing.T) {
	ks := newTestKeystore(t)
	if err := ks.Set("default", "value"); err != nil {
		t.Fatal(err)
	}

	contents, err := os.ReadFile(ks.Path())
	if err != nil {
		t.Fatal(err)
	}
	contents[len(contents)-1] ^= 0xff
	if err := os.WriteFile(ks.Path(), contents, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := ks.Get("default"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get() error = %v, want ErrCorrupt", err)
	}

	if err := os.WriteFile(ks.Path(), []byte("not a keystore at all, just text"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ks.List(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("List() error = %v, want ErrCorrupt", err)
	}
}

func TestFileKeystoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permissions not supported on Windows")
	}

	path := filepath.Join(t.TempDir(), "subdir", "deep", "keys.enc")
	ks, err := NewFileKeystore(path, Passphrase("p"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ks.Set("test", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("File permissions = %o, want 0600", mode)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the keystore", len(entries))
	}
}

func TestMasterKeySources(t *testing.T) {
	if _, err := Passphrase(nil).MasterKey(); err == nil {
		t.Error("empty Passphrase should fail")
	}

	a, err := MachineKey{}.MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := MachineKey{}.MasterKey()
	if len(a) != 32 || !bytes.Equal(a, b) {
		t.Errorf("MachineKey should be a stable 32-byte key, got %d bytes", len(a))
	}

	t.Setenv(EnvPassphrase, "from-env")
	key, err := DefaultSource().MasterKey()
	if err != nil {
		t.Fatal(err)
	}
	if string(key) != "from-env" {
		t.Errorf("DefaultSource() key = %q, want from-env", key)
	}

	t.Setenv(EnvPassphrase, "")
	if _, ok := DefaultSource().(MachineKey); !ok {
		t.Errorf("DefaultSource() = %T, want MachineKey", DefaultSource())
	}
}

func TestDefaultKeystorePath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("USERPROFILE", "/home/tester")

	path := DefaultKeystorePath()
	if filepath.Base(path) != "keys.enc" {
		t.Errorf("DefaultKeystorePath() = %q, should end with keys.enc", path)
	}
	if filepath.Base(filepath.Dir(path)) != ".dify" {
		t.Errorf("DefaultKeystorePath() = %q, should be in .dify directory", path)
	}
}

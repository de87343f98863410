package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a local directory of PEM key files, one per named identity.
//
// EXPERIMENTAL: this filesystem-backed storage surface is a client-side
// convenience and may change in MINOR releases.
//
// Layout: <Directory>/<name>.pem, directory mode 0700, files 0600.
type KeyStore struct {
	Directory string
}

// KeyEntry describes one stored key without loading its secret.
type KeyEntry struct {
	Name string
	Path string
}

// ErrKeyExists is returned by Save when a key of the same name is present and
// overwrite was not requested.
var ErrKeyExists = errors.New("key already exists")

// GetDefaultDirectory returns $DIDAUTH_KEY_DIR, or ~/.didauth/keys when it is
// unset.
func GetDefaultDirectory() (string, error) {
	if dir := os.Getenv("DIDAUTH_KEY_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".didauth", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) keyFilePath(name string) string {
	return filepath.Join(ks.Directory, name+".pem")
}

// CheckKeyName restricts key names to [A-Za-z0-9_-] so they are safe as
// file names on every platform.
func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

// Save writes k under name, encrypted when passphrase is non-empty.
func (ks *KeyStore) Save(name string, k *Keypair, passphrase string, overwrite bool) (string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	data, err := EncodeKeyFile(k, passphrase)
	if err != nil {
		return "", err
	}
	filePath := ks.keyFilePath(name)
	if err := os.MkdirAll(ks.Directory, 0o700); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrKeyExists, name)
		}
		return "", err
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return "", err
	}
	return filePath, file.Close()
}

// Load reads and decodes the key stored under name.
func (ks *KeyStore) Load(name, passphrase string) (*Keypair, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	return LoadKeyFile(ks.keyFilePath(name), passphrase)
}

// LoadKeyFile reads and decodes a key file at an arbitrary path.
func LoadKeyFile(filePath, passphrase string) (*Keypair, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return DecodeKeyFile(data, passphrase)
}

// List returns the stored keys sorted by name. A missing directory is an
// empty store.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pem") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".pem")
		if CheckKeyName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]KeyEntry, 0, len(names))
	for _, name := range names {
		result = append(result, KeyEntry{Name: name, Path: ks.keyFilePath(name)})
	}
	return result, nil
}

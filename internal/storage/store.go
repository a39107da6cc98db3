package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dpavlenko/cryptoquest/internal/common"
	"github.com/dpavlenko/cryptoquest/internal/cryptox"
	"github.com/dpavlenko/cryptoquest/internal/filex"
	"github.com/dpavlenko/cryptoquest/internal/logging"
)

// On-disk layout of the data file: [nonce 12 bytes][ciphertext+tag].
// The master key lives in a separate file of exactly 32 random bytes,
// created on first run. Losing the key file makes all prior data
// permanently unrecoverable.

const (
	dataFilePerm = 0o600
	keyFilePerm  = 0o600
)

// FileStore persists the whole Document as one authenticated-encrypted
// file. Every mutation goes through Update, which serializes the full
// load-mutate-save cycle under a single lock, so concurrent requests can
// never overwrite each other's writes with stale state.
type FileStore struct {
	path    string
	keyPath string
	key     []byte
	mu      sync.RWMutex
	logger  logging.Logger
}

// NewFileStore opens (or initializes) the store at path, using the master
// key at keyPath. A missing key file is only acceptable when no data file
// exists yet; otherwise the data would silently become undecryptable and
// be overwritten on the next save.
func NewFileStore(path, keyPath string, logger logging.Logger) (*FileStore, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	if _, err := filex.EnsureParentDir(keyPath); err != nil {
		return nil, err
	}

	s := &FileStore{
		path:    path,
		keyPath: keyPath,
		logger:  logger.With("module", "storage"),
	}

	key, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		if len(key) != cryptox.KeyLen {
			return nil, fmt.Errorf("master key file %s: expected %d bytes, got %d", keyPath, cryptox.KeyLen, len(key))
		}
		s.key = key

	case os.IsNotExist(err):
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("data file %s exists but master key %s is missing: %w",
				path, keyPath, common.ErrAuthenticationFailed)
		}
		s.key = common.GenerateRandByteArray(cryptox.KeyLen)
		if err := filex.WriteFileAtomic(keyPath, s.key, keyFilePerm); err != nil {
			return nil, fmt.Errorf("write master key: %w", err)
		}
		s.logger.Info(context.Background(), "generated new master key", "path", keyPath)

	default:
		return nil, fmt.Errorf("read master key: %w", err)
	}

	return s, nil
}

// Load reads and decrypts the on-disk document. An absent file yields an
// empty document; a present file that fails authentication yields
// common.ErrAuthenticationFailed, never an empty document.
func (s *FileStore) Load(ctx context.Context) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx)
}

// Save encrypts and atomically replaces the on-disk document.
func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, doc)
}

// Update runs fn inside the store's mutual-exclusion scope: load, mutate,
// save. If fn returns an error nothing is written. This is the only safe
// way to perform read-modify-write cycles against the shared document.
func (s *FileStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(ctx, doc)
}

// GetUser returns the record for id or common.ErrNotFound.
func (s *FileStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := doc.Users[id]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", id, common.ErrNotFound)
	}
	return u, nil
}

// EnsureUser returns the record for id, lazily creating the default record
// if it does not exist yet. Calling it repeatedly is idempotent.
func (s *FileStore) EnsureUser(ctx context.Context, id string) (*UserRecord, error) {
	var u *UserRecord
	err := s.Update(ctx, func(doc *Document) error {
		u = doc.EnsureUser(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// PutUser stores the record under id, replacing any existing record.
func (s *FileStore) PutUser(ctx context.Context, id string, u *UserRecord) error {
	return s.Update(ctx, func(doc *Document) error {
		doc.Users[id] = u
		return nil
	})
}

// MapFingerprint records fingerprint -> id. Remapping a fingerprint to a
// different id is rejected with common.ErrConflict; mapping it again to
// the same id is a no-op.
func (s *FileStore) MapFingerprint(ctx context.Context, fingerprint, id string) error {
	return s.Update(ctx, func(doc *Document) error {
		if existing, ok := doc.CertMappings[fingerprint]; ok {
			if existing == id {
				return nil
			}
			return fmt.Errorf("fingerprint already linked to %q: %w", existing, common.ErrConflict)
		}
		doc.CertMappings[fingerprint] = id
		return nil
	})
}

// ResolveFingerprint returns the user id a fingerprint is linked to, or
// common.ErrNotFound.
func (s *FileStore) ResolveFingerprint(ctx context.Context, fingerprint string) (string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	id, ok := doc.CertMappings[fingerprint]
	if !ok {
		return "", fmt.Errorf("fingerprint: %w", common.ErrNotFound)
	}
	return id, nil
}

func (s *FileStore) load(ctx context.Context) (*Document, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read data file: %w", err)
	}

	if len(blob) < cryptox.NonceLen {
		return nil, fmt.Errorf("data file truncated (%d bytes): %w", len(blob), common.ErrAuthenticationFailed)
	}

	nonce, ciphertext := blob[:cryptox.NonceLen], blob[cryptox.NonceLen:]
	plaintext, err := cryptox.Decrypt(ciphertext, nonce, s.key)
	if err != nil {
		s.logger.Error(ctx, "data file failed authentication", "path", s.path)
		return nil, fmt.Errorf("decrypt data file: %w", errors.Join(common.ErrAuthenticationFailed, err))
	}

	doc := NewDocument()
	if err := json.Unmarshal(plaintext, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*UserRecord)
	}
	if doc.CertMappings == nil {
		doc.CertMappings = make(map[string]string)
	}
	return doc, nil
}

func (s *FileStore) save(ctx context.Context, doc *Document) error {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	ciphertext, nonce, err := cryptox.Encrypt(s.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt document: %w", err)
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	if err := filex.WriteFileAtomic(s.path, blob, dataFilePerm); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}

	s.logger.Debug(ctx, "document saved", "users", len(doc.Users))
	return nil
}

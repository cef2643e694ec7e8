package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const sessionFile = "session.enc"

// FileStore persists the session sealed with AES-GCM under a directory the
// process owns. The sealing key is derived from a caller-provided secret via
// HKDF-SHA256, so the file at rest never contains the bearer token in clear.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	aead   cipher.AEAD
	logger *zap.Logger
	state  sessionState
}

type sessionState struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// NewFileStore opens (or creates) the store directory and loads any persisted
// session. A corrupt or unreadable session file is discarded with a warning.
func NewFileStore(dir, secret string, logger *zap.Logger) (*FileStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("tokenstore: secret is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("imagefeed-token-store"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	s := &FileStore{path: filepath.Join(dir, sessionFile), aead: aead, logger: logger}
	s.load()
	return s, nil
}

func (s *FileStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *FileStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	s.persistLocked()
}

func (s *FileStore) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Username
}

func (s *FileStore) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Username = username
	s.persistLocked()
}

func (s *FileStore) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token != ""
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = sessionState{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log().Warn("remove session file", zap.Error(err))
	}
}

func (s *FileStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log().Warn("read session file", zap.Error(err))
		}
		return
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		s.log().Warn("session file truncated, discarding")
		return
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		s.log().Warn("unseal session file, discarding", zap.Error(err))
		return
	}
	var state sessionState
	if err := json.Unmarshal(plain, &state); err != nil {
		s.log().Warn("decode session file, discarding", zap.Error(err))
		return
	}
	s.state = state
}

func (s *FileStore) persistLocked() {
	plain, err := json.Marshal(s.state)
	if err != nil {
		s.log().Warn("encode session", zap.Error(err))
		return
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		s.log().Warn("generate nonce", zap.Error(err))
		return
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)
	if err := os.WriteFile(s.path, sealed, 0o600); err != nil {
		s.log().Warn("write session file", zap.Error(err))
	}
}

func (s *FileStore) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

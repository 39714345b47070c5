package leadform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ipa-leadgate/internal/common/validation"
)

// DraftKey is the storage key of the in-progress form.
const DraftKey = "roi_form_progress"

var ErrDraftNotFound = errors.New("draft not found")

// Draft is the stored form progress. Step1Data is set once step one has been
// submitted.
type Draft struct {
	Step      int        `json:"step"`
	Step1Data *Step1Data `json:"step1Data,omitempty"`
}

// DraftStore keeps raw draft documents by key.
type DraftStore interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Delete(key string) error
}

var draftSchema = validation.MustCompileDocumentSchema(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"step"},
	"properties": map[string]interface{}{
		"step": map[string]interface{}{"type": "integer", "enum": []interface{}{1, 2}},
		"step1Data": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"email", "consentRequired"},
			"properties": map[string]interface{}{
				"email":             map[string]interface{}{"type": "string"},
				"consentRequired":   map[string]interface{}{"type": "boolean"},
				"consentNewsletter": map[string]interface{}{"type": "boolean"},
			},
		},
	},
})

// MemoryDraftStore keeps drafts for the lifetime of the process.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string][]byte)}
}

func (s *MemoryDraftStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.drafts[key]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryDraftStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryDraftStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

// FileDraftStore keeps one JSON file per key in a directory. It assumes a
// single writer.
type FileDraftStore struct {
	dir string
}

func NewFileDraftStore(dir string) (*FileDraftStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	return &FileDraftStore{dir: dir}, nil
}

func (s *FileDraftStore) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("invalid draft key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *FileDraftStore) Load(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	return data, nil
}

// Save replaces the draft atomically so a crash never leaves half a file.
func (s *FileDraftStore) Save(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create draft file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	return nil
}

func (s *FileDraftStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Package policy loads integration policies and response processing
// settings from local configuration files.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/janderssonse/signservice-integration/internal/core/domain"
	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// FileStore loads policies from a local JSON or YAML file.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	policies map[string]*domain.PolicyConfiguration
	order    []string
}

// PoliciesFile represents the structure of the policy file.
type PoliciesFile struct {
	Policies []PolicyEntry `json:"policies" yaml:"policies"`
}

// PolicyEntry is one policy in the policy file.
type PolicyEntry struct {
	Policy         string               `json:"policy" yaml:"policy"`
	SignaturePages []SignaturePageEntry `json:"pdf_signature_pages" yaml:"pdf_signature_pages"`
}

// SignaturePageEntry is a signature page whose template is read from File.
// Relative paths are resolved against the directory of the policy file.
type SignaturePageEntry struct {
	domain.SignaturePage `yaml:",inline"`
	File                 string `json:"file" yaml:"file"`
}

// NewFileStore creates a new file-based policy store. Call Refresh to load it.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:     path,
		logger:   logger,
		policies: make(map[string]*domain.PolicyConfiguration),
	}
}

// Policy returns the named policy. The returned value is shared and must not
// be modified.
func (s *FileStore) Policy(name string) (*domain.PolicyConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrPolicyNotFound, name)
	}
	return p, nil
}

// Names returns the loaded policy names in file order.
func (s *FileStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Refresh reloads the policies from the file. On error the previously loaded
// policies are kept.
func (s *FileStore) Refresh(ctx context.Context) error {
	var file PoliciesFile
	if err := decodeFile(s.path, &file); err != nil {
		return err
	}

	baseDir := filepath.Dir(s.path)
	policies := make(map[string]*domain.PolicyConfiguration, len(file.Policies))
	order := make([]string, 0, len(file.Policies))

	for _, entry := range file.Policies {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := &domain.PolicyConfiguration{Policy: entry.Policy}
		for _, pe := range entry.SignaturePages {
			page := pe.SignaturePage
			if pe.File != "" {
				path := pe.File
				if !filepath.IsAbs(path) {
					path = filepath.Join(baseDir, path)
				}
				contents, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("policy %q: read signature page %q: %w", entry.Policy, page.ID, err)
				}
				page.Contents = contents
			}
			cfg.SignaturePages = append(cfg.SignaturePages, &page)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid policy %q: %w", entry.Policy, err)
		}
		if _, dup := policies[cfg.Policy]; dup {
			return fmt.Errorf("duplicate policy %q", cfg.Policy)
		}
		policies[cfg.Policy] = cfg
		order = append(order, cfg.Policy)
	}

	s.mu.Lock()
	s.policies = policies
	s.order = order
	s.mu.Unlock()

	s.logger.Info("policies loaded",
		zap.String("file", s.path),
		zap.Strings("policies", order))
	return nil
}

// LoadProcessingPolicy reads response processing settings from a JSON or YAML
// file. Settings missing from the file keep the values of
// domain.DefaultProcessingPolicy, and sig_message_uri_map entries are added to
// the default mapping.
func LoadProcessingPolicy(path string) (*domain.ProcessingPolicy, error) {
	p := domain.DefaultProcessingPolicy()
	if err := decodeFile(path, p); err != nil {
		return nil, err
	}
	if p.AllowedClockSkew < 0 {
		return nil, fmt.Errorf("allowed_clock_skew must not be negative (was %s)", p.AllowedClockSkew)
	}
	return p, nil
}

// decodeFile unmarshals a JSON or YAML file into v, picking the format from
// the file extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse YAML file %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON file %s: %w", path, err)
	}
	return nil
}

// Ensure FileStore implements ports.PolicyStore
var _ ports.PolicyStore = (*FileStore)(nil)

// LoadPreferences reads signature page preferences from a JSON or YAML file.
// Inline signature pages cannot carry template contents in a file; refer to a
// configured page instead.
func LoadPreferences(path string) (*domain.SignaturePagePreferences, error) {
	var prefs domain.SignaturePagePreferences
	if err := decodeFile(path, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

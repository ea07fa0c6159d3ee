package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"gopkg.in/yaml.v3"
)

// Application setting keys.
const (
	KeyAuthURL      = "AUTH_URL"
	KeyRealm        = "REALM"
	KeyClientID     = "CLIENT_ID"
	KeyAPIURL       = "API_URL"
	KeyClientSecret = "CLIENT_SECRET"
	KeyScopes       = "SCOPES"
)

// RequiredKeys must be present before the identity client is constructed.
var RequiredKeys = []string{KeyAuthURL, KeyRealm, KeyClientID, KeyAPIURL}

// knownKeys can be supplied or overridden through the process environment.
var knownKeys = []string{KeyAuthURL, KeyRealm, KeyClientID, KeyAPIURL, KeyClientSecret, KeyScopes}

// Settings is a read-only mapping of named application settings.
// It is populated once and never changes afterwards.
type Settings struct {
	values map[string]string
}

// NewSettings copies values into a frozen Settings.
func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the stored value for key. ok is false when the key is absent.
func (s *Settings) Get(key string) (value string, ok bool) {
	if s == nil {
		return "", false
	}
	value, ok = s.values[key]
	return value, ok
}

// GetOr returns the stored value for key or def when the key is absent or empty.
func (s *Settings) GetOr(key, def string) string {
	if v, ok := s.Get(key); ok && v != "" {
		return v
	}
	return def
}

// Keys returns the sorted list of keys held.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Require fails with ErrMissingSetting naming every key that is absent or empty.
func (s *Settings) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if v, ok := s.Get(k); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

// LoadSettings reads the settings file at path, if it exists, and overlays any
// known keys found in the environment. JSON and YAML files are supported.
func LoadSettings(path string, lookupEnv func(string) (string, bool)) (*Settings, error) {
	values := map[string]string{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			fileValues, err := decodeSettings(path, data)
			if err != nil {
				return nil, fmt.Errorf("[config LoadSettings] %s: %w", path, err)
			}
			for k, v := range fileValues {
				values[k] = v
			}
		case os.IsNotExist(err):
			// Environment only
		default:
			return nil, fmt.Errorf("[config LoadSettings] read %s: %w", path, err)
		}
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	for _, k := range knownKeys {
		if v, ok := lookupEnv(k); ok && v != "" {
			values[k] = v
		}
	}

	return NewSettings(values), nil
}

func decodeSettings(path string, data []byte) (map[string]string, error) {
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", apperrors.ErrInvalidSetting, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", apperrors.ErrInvalidSetting, err)
		}
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			values[k] = ""
		case string:
			values[k] = tv
		default:
			values[k] = fmt.Sprint(tv)
		}
	}
	return values, nil
}

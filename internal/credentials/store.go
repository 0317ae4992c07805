// Package credentials stores upstream API keys in the OS keychain. Keys
// found in the environment always take precedence.
// file: internal/credentials/store.go
package credentials

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service all keys are stored under.
const DefaultService = "codebridge"

// Key names.
const (
	KeyOpenAI = "openai_api_key"
	KeySearch = "search_api_key"
)

// KnownKeys lists the keys the keychain subcommand manages.
var KnownKeys = []string{KeyOpenAI, KeySearch}

// Source tells where a resolved key came from.
type Source string

// Key sources.
const (
	SourceEnv      Source = "environment"
	SourceKeychain Source = "keychain"
	SourceNone     Source = "none"
)

// Store reads and writes keys in the OS keychain.
type Store struct {
	service string
	logger  logging.Logger
}

// NewStore creates a store under DefaultService.
func NewStore(logger logging.Logger) *Store {
	return NewStoreForService(DefaultService, logger)
}

// NewStoreForService creates a store under a custom service name.
func NewStoreForService(service string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Store{service: service, logger: logger.WithField("component", "credential_store")}
}

// Service returns the keychain service name.
func (s *Store) Service() string { return s.service }

// IsKnownKey reports whether name is one of KnownKeys.
func IsKnownKey(name string) bool {
	for _, k := range KnownKeys {
		if k == name {
			return true
		}
	}
	return false
}

// Get returns the stored key. A missing entry returns "" and no error.
func (s *Store) Get(name string) (string, error) {
	value, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			s.logger.Debug("No keychain entry found.", "key", name)
			return "", nil
		}
		s.logger.Error("keyring.Get operation failed.", "key", name, "error", fmt.Sprintf("%+v", err))
		return "", errors.Wrapf(err, "failed to read %s from keychain", name)
	}
	return value, nil
}

// Set stores a key, overwriting any previous value.
func (s *Store) Set(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.Newf("cannot store empty value for %s", name)
	}
	if err := keyring.Set(s.service, name, value); err != nil {
		s.logger.Error("keyring.Set operation failed.", "key", name, "error", fmt.Sprintf("%+v", err))
		return errors.Wrapf(err, "failed to save %s to keychain", name)
	}
	s.logger.Info("Key saved to keychain.", "key", name)
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(name string) error {
	if err := keyring.Delete(s.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return errors.Wrapf(err, "failed to delete %s from keychain", name)
	}
	s.logger.Info("Key deleted from keychain.", "key", name)
	return nil
}

// IsAvailable checks whether the keychain can be queried at all.
func (s *Store) IsAvailable() bool {
	_, err := keyring.Get(s.service, KeyOpenAI)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	s.logger.Warn("Keychain is inaccessible or permissions are insufficient.", "error", err)
	return false
}

// Resolve returns envValue when set, otherwise the keychain entry for name.
func (s *Store) Resolve(envValue, name string) (string, Source) {
	if v := strings.TrimSpace(envValue); v != "" {
		return v, SourceEnv
	}
	v, err := s.Get(name)
	if err != nil || v == "" {
		return "", SourceNone
	}
	return v, SourceKeychain
}

// Diagnosis is the outcome of Diagnose.
type Diagnosis struct {
	Service   string
	Available bool
	SetOK     bool
	GetOK     bool
	Matches   bool
	DeleteOK  bool
	Errors    []string
}

// Diagnose writes, reads back and deletes a throwaway entry.
func (s *Store) Diagnose() Diagnosis {
	d := Diagnosis{Service: s.service, Available: s.IsAvailable()}
	key := "diagnostic_check"
	value := "check-" + time.Now().UTC().Format(time.RFC3339Nano)

	if err := keyring.Set(s.service, key, value); err != nil {
		d.Errors = append(d.Errors, "set: "+err.Error())
		return d
	}
	d.SetOK = true

	got, err := keyring.Get(s.service, key)
	if err != nil {
		d.Errors = append(d.Errors, "get: "+err.Error())
	} else {
		d.GetOK = true
		d.Matches = got == value
	}

	if err := keyring.Delete(s.service, key); err != nil {
		d.Errors = append(d.Errors, "delete: "+err.Error())
	} else {
		d.DeleteOK = true
	}
	return d
}

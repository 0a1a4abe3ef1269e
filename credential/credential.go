// Package credential connects the decoding engine to password sources: a
// secure credential store and an interactive prompt. The engine only ever
// exchanges password strings through this package, never derived keys.
package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrNotFound          = errors.New("credential: not found")
	ErrCancelled         = errors.New("credential: cancelled by user")
	ErrInvalidDescriptor = errors.New("credential: invalid descriptor")
	ErrTooManyAttempts   = errors.New("credential: too many attempts")
	ErrLocked            = errors.New("credential: store is locked")
)

// Descriptor identifies one stored password.
type Descriptor struct {
	// Label and Description are shown to the user; both are optional.
	Label       string
	Description string

	// Service and Generic form the lookup key and are required.
	Service string
	Generic []byte
}

func (d Descriptor) validate() error {
	if d.Service == "" || len(d.Generic) == 0 {
		return fmt.Errorf("%w: service and generic item are required", ErrInvalidDescriptor)
	}
	return nil
}

func (d Descriptor) key() string {
	return d.Service + "\x00" + string(d.Generic)
}

// Store is a secure password store keyed by descriptor.
type Store interface {
	// Get returns ErrNotFound when nothing is stored for d.
	Get(d Descriptor) (string, error)
	Set(d Descriptor, password string) error
	Remove(d Descriptor) error
}

// Prompter asks the user for a password. attempt starts at 1 and grows
// after every rejected password. Implementations return ErrCancelled when
// the user gives up.
type Prompter interface {
	Prompt(d Descriptor, hint string, attempt int) (string, error)
}

// MemoryStore keeps passwords for the lifetime of the process.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(d Descriptor) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[d.key()]
	if !ok {
		return "", ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Set(d Descriptor, password string) error {
	if err := d.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[d.key()] = password
	return nil
}

func (s *MemoryStore) Remove(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[d.key()]; !ok {
		return ErrNotFound
	}
	delete(s.m, d.key())
	return nil
}

// Retriever obtains a password that passes a validator, trying the store
// before prompting.
type Retriever struct {
	// Store is optional.
	Store    Store
	Prompter Prompter
	// MaxAttempts bounds the number of prompts; zero means until the user
	// cancels.
	MaxAttempts int
	Logger      *slog.Logger
}

// Retrieve returns the first password for which validate returns true.
//
// A stored password that fails validation is removed from the store so it
// is not offered again. A password accepted from the prompt is saved; a
// failure to save is logged and does not fail the retrieval.
func (r *Retriever) Retrieve(d Descriptor, hint string, validate func(password string) bool) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if r.Store != nil {
		pw, err := r.Store.Get(d)
		switch {
		case err == nil && validate(pw):
			return pw, nil
		case err == nil:
			logger.Info("stored password rejected, removing it", "service", d.Service)
			if err := r.Store.Remove(d); err != nil && !errors.Is(err, ErrNotFound) {
				logger.Warn("remove stored password", "error", err)
			}
		case !errors.Is(err, ErrNotFound):
			logger.Warn("read stored password", "error", err)
		}
	}

	if r.Prompter == nil {
		return "", ErrNotFound
	}
	for attempt := 1; r.MaxAttempts <= 0 || attempt <= r.MaxAttempts; attempt++ {
		pw, err := r.Prompter.Prompt(d, hint, attempt)
		if err != nil {
			return "", err
		}
		if !validate(pw) {
			logger.Debug("password rejected", "attempt", attempt)
			continue
		}
		if r.Store != nil {
			if err := r.Store.Set(d, pw); err != nil {
				logger.Warn("save password", "error", err)
			}
		}
		return pw, nil
	}
	return "", ErrTooManyAttempts
}

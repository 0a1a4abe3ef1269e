package iwa

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

// Bundle is an opened document package. Components are decoded on demand
// and every call re-reads the container, so results never depend on earlier
// calls. Methods are safe for concurrent use; Close waits for in-flight
// decodes before wiping the content key.
type Bundle struct {
	mu         sync.RWMutex
	closed     bool
	container  *Container
	key        *ContentKey
	encrypted  bool
	props      Properties
	kind       Kind
	registry   *Registry
	components []string
	known      map[string]struct{}
	limits     Limits
	logger     *slog.Logger
}

// Open opens the package at name. key must be non-nil for encrypted
// packages and is copied; the caller keeps ownership of its own key.
//
// Open returns ErrNotAPackage if name is a zip file without package
// properties, ErrNeedsPassword if the package is encrypted and key is nil,
// and ErrWrongPassword if key was derived for a different package.
func Open(name string, key *ContentKey, opts ...Option) (*Bundle, error) {
	cfg := newOpenConfig(opts)
	if cfg.kind == "" {
		if k, ok := KindForPath(name); ok {
			cfg.kind = k
		}
	}
	c, err := OpenContainer(name, cfg.limits)
	if err != nil {
		return nil, err
	}
	b, err := newBundle(c, key, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	b.logger.Debug("opened package", "path", name, "kind", string(b.kind),
		"components", len(b.components), "encrypted", b.encrypted)
	return b, nil
}

// NewBundle opens a package held in r. Without WithKind, records decode to
// placeholders because no schema can be selected.
func NewBundle(r io.ReaderAt, size int64, key *ContentKey, opts ...Option) (*Bundle, error) {
	cfg := newOpenConfig(opts)
	c, err := NewContainer(r, size, cfg.limits)
	if err != nil {
		return nil, err
	}
	return newBundle(c, key, cfg)
}

func newBundle(c *Container, key *ContentKey, cfg openConfig) (*Bundle, error) {
	if !c.Has(PropertiesEntry) {
		return nil, fmt.Errorf("%w: missing %s", ErrNotAPackage, PropertiesEntry)
	}
	b := &Bundle{
		container: c,
		kind:      cfg.kind,
		known:     make(map[string]struct{}),
		limits:    cfg.limits,
		logger:    cfg.logger,
	}
	if c.Has(PasswordVerifierEntry) {
		b.encrypted = true
		if key == nil {
			return nil, ErrNeedsPassword
		}
		raw, err := c.DataForEntry(PasswordVerifierEntry)
		if err != nil {
			return nil, err
		}
		params, err := parseEncryptionParameters(raw, cfg.limits)
		if err != nil {
			return nil, err
		}
		if !key.verifiedFor(params.Verifier) {
			return nil, ErrWrongPassword
		}
		b.key = key.clone()
	} else if key != nil {
		b.logger.Debug("ignoring content key for unencrypted package")
	}

	props, err := readProperties(c)
	if err != nil {
		b.key.Wipe()
		return nil, err
	}
	b.props = props

	for _, entry := range c.EntryNames() {
		if name, ok := componentNameForEntry(entry); ok {
			b.components = append(b.components, name)
			b.known[name] = struct{}{}
		}
	}

	if b.kind != "" {
		reg, err := RegistryFor(b.kind)
		if err != nil {
			b.logger.Debug("no schema for package kind", "kind", string(b.kind), "error", err)
		} else {
			b.registry = reg
		}
	}
	return b, nil
}

// ComponentNames lists decodable components in container order.
func (b *Bundle) ComponentNames() []string {
	out := make([]string, len(b.components))
	copy(out, b.components)
	return out
}

func (b *Bundle) Properties() Properties { return b.props }

func (b *Bundle) Kind() Kind { return b.kind }

func (b *Bundle) Encrypted() bool { return b.encrypted }

// DataForComponent reads, decrypts if needed and decompresses one
// component. Failures are reported as *ComponentError.
func (b *Bundle) DataForComponent(name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	data, err := b.componentData(name)
	if err != nil {
		b.logger.Debug("component decode failed", "component", name, "error", err)
		return nil, &ComponentError{Component: name, Err: err}
	}
	return data, nil
}

func (b *Bundle) componentData(name string) ([]byte, error) {
	if err := validateComponentName(name); err != nil {
		return nil, err
	}
	if _, ok := b.known[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchComponent, name)
	}
	raw, err := b.container.DataForEntry(componentEntryName(name))
	if err != nil {
		return nil, err
	}
	if b.encrypted {
		if raw, err = decryptStream(b.key, raw, b.limits); err != nil {
			return nil, err
		}
	}
	return decodeChunks(raw, b.limits)
}

// Records decodes a component into typed records. Message types unknown to
// the package's schema become placeholder records rather than errors.
func (b *Bundle) Records(name string) ([]Record, error) {
	data, err := b.DataForComponent(name)
	if err != nil {
		return nil, err
	}
	archives, err := parseArchives(data, b.limits)
	if err != nil {
		return nil, &ComponentError{Component: name, Err: err}
	}
	return recordsForArchives(archives, b.registry), nil
}

// Close releases the container and wipes the content key.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.key.Wipe()
	return b.container.Close()
}

// PackageLooksValid reports whether name is a zip container holding package
// properties and at least one component. No password is needed.
func PackageLooksValid(name string, opts ...Option) bool {
	c, err := OpenContainer(name, newOpenConfig(opts).limits)
	if err != nil {
		return false
	}
	defer c.Close()
	if !c.Has(PropertiesEntry) {
		return false
	}
	for _, entry := range c.EntryNames() {
		if _, ok := componentNameForEntry(entry); ok {
			return true
		}
	}
	return false
}

// PropertiesFor reads the package identity without decrypting anything.
func PropertiesFor(name string, opts ...Option) (Properties, error) {
	c, err := OpenContainer(name, newOpenConfig(opts).limits)
	if err != nil {
		return Properties{}, err
	}
	defer c.Close()
	if !c.Has(PropertiesEntry) {
		return Properties{}, fmt.Errorf("%w: missing %s", ErrNotAPackage, PropertiesEntry)
	}
	return readProperties(c)
}

// PasswordVerifierFor extracts the encryption parameters and the optional
// password hint. It returns ErrNotEncrypted for unencrypted packages. The
// limits given by opts also bound key derivation by the returned verifier.
func PasswordVerifierFor(name string, opts ...Option) (*PasswordVerifier, string, error) {
	c, err := OpenContainer(name, newOpenConfig(opts).limits)
	if err != nil {
		return nil, "", err
	}
	defer c.Close()
	return passwordVerifierFor(c)
}

func passwordVerifierFor(c *Container) (*PasswordVerifier, string, error) {
	if !c.Has(PasswordVerifierEntry) {
		return nil, "", ErrNotEncrypted
	}
	raw, err := c.DataForEntry(PasswordVerifierEntry)
	if err != nil {
		return nil, "", err
	}
	params, err := parseEncryptionParameters(raw, c.limits)
	if err != nil {
		return nil, "", err
	}
	var hint string
	if c.Has(PasswordHintEntry) {
		h, err := c.DataForEntry(PasswordHintEntry)
		if err != nil {
			return nil, "", err
		}
		if utf8.Valid(h) {
			hint = strings.TrimSpace(string(h))
		}
	}
	return &PasswordVerifier{Params: params, limits: c.limits}, hint, nil
}

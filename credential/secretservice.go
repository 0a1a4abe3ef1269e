package credential

import (
	"encoding/hex"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	secretsDest       = "org.freedesktop.secrets"
	secretsPath       = dbus.ObjectPath("/org/freedesktop/secrets")
	defaultCollection = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	noPrompt          = dbus.ObjectPath("/")

	serviceIface    = "org.freedesktop.Secret.Service"
	collectionIface = "org.freedesktop.Secret.Collection"
	itemIface       = "org.freedesktop.Secret.Item"
	sessionIface    = "org.freedesktop.Secret.Session"
)

// secret mirrors the (oayays) Secret struct of the Secret Service API.
type secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// SecretServiceStore keeps passwords in the freedesktop Secret Service
// (GNOME Keyring, KWallet) over the session bus. Locked items that need an
// interactive unlock prompt are reported as ErrLocked.
type SecretServiceStore struct {
	conn *dbus.Conn
}

// NewSecretServiceStore connects to the session bus and checks that a
// Secret Service provider is running.
func NewSecretServiceStore() (*SecretServiceStore, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("credential: session bus: %w", err)
	}
	if err := conn.Object(secretsDest, secretsPath).Call("org.freedesktop.DBus.Peer.Ping", 0).Err; err != nil {
		return nil, fmt.Errorf("credential: secret service unavailable: %w", err)
	}
	return &SecretServiceStore{conn: conn}, nil
}

func attributes(d Descriptor) map[string]string {
	return map[string]string{
		"service": d.Service,
		"generic": hex.EncodeToString(d.Generic),
	}
}

func (s *SecretServiceStore) service() dbus.BusObject {
	return s.conn.Object(secretsDest, secretsPath)
}

func (s *SecretServiceStore) openSession() (dbus.ObjectPath, error) {
	var output dbus.Variant
	var session dbus.ObjectPath
	err := s.service().Call(serviceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).Store(&output, &session)
	if err != nil {
		return "", fmt.Errorf("credential: open session: %w", err)
	}
	return session, nil
}

func (s *SecretServiceStore) closeSession(session dbus.ObjectPath) {
	_ = s.conn.Object(secretsDest, session).Call(sessionIface+".Close", 0).Err
}

func (s *SecretServiceStore) find(d Descriptor) (dbus.ObjectPath, error) {
	var unlocked, locked []dbus.ObjectPath
	if err := s.service().Call(serviceIface+".SearchItems", 0, attributes(d)).Store(&unlocked, &locked); err != nil {
		return "", fmt.Errorf("credential: search: %w", err)
	}
	if len(unlocked) > 0 {
		return unlocked[0], nil
	}
	if len(locked) == 0 {
		return "", ErrNotFound
	}
	var nowUnlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := s.service().Call(serviceIface+".Unlock", 0, locked[:1]).Store(&nowUnlocked, &prompt); err != nil {
		return "", fmt.Errorf("credential: unlock: %w", err)
	}
	if len(nowUnlocked) == 0 || prompt != noPrompt {
		return "", ErrLocked
	}
	return nowUnlocked[0], nil
}

func (s *SecretServiceStore) Get(d Descriptor) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	item, err := s.find(d)
	if err != nil {
		return "", err
	}
	session, err := s.openSession()
	if err != nil {
		return "", err
	}
	defer s.closeSession(session)

	var sec secret
	if err := s.conn.Object(secretsDest, item).Call(itemIface+".GetSecret", 0, session).Store(&sec); err != nil {
		return "", fmt.Errorf("credential: get secret: %w", err)
	}
	return string(sec.Value), nil
}

func (s *SecretServiceStore) Set(d Descriptor, password string) error {
	if err := d.validate(); err != nil {
		return err
	}
	session, err := s.openSession()
	if err != nil {
		return err
	}
	defer s.closeSession(session)

	label := d.Label
	if label == "" {
		label = d.Service
	}
	attrs := attributes(d)
	if d.Description != "" {
		attrs["description"] = d.Description
	}
	props := map[string]dbus.Variant{
		itemIface + ".Label":      dbus.MakeVariant(label),
		itemIface + ".Attributes": dbus.MakeVariant(attrs),
	}
	sec := secret{Session: session, Value: []byte(password), ContentType: "text/plain; charset=utf8"}
	var item, prompt dbus.ObjectPath
	err = s.conn.Object(secretsDest, defaultCollection).
		Call(collectionIface+".CreateItem", 0, props, sec, true).
		Store(&item, &prompt)
	if err != nil {
		return fmt.Errorf("credential: create item: %w", err)
	}
	if prompt != noPrompt {
		return ErrLocked
	}
	return nil
}

func (s *SecretServiceStore) Remove(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	item, err := s.find(d)
	if err != nil {
		return err
	}
	var prompt dbus.ObjectPath
	if err := s.conn.Object(secretsDest, item).Call(itemIface+".Delete", 0).Store(&prompt); err != nil {
		return fmt.Errorf("credential: delete: %w", err)
	}
	if prompt != noPrompt {
		return ErrLocked
	}
	return nil
}

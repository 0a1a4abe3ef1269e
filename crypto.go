package iwa

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the key derivation cost used for new parameters.
const DefaultIterations uint32 = 100_000

const verifierLabel = "iwa password verifier v2"

// Function variables for testing injection.
var (
	randRead = rand.Read
)

// EncryptionParameters are stored once per package and allow a password to
// be turned into the package content key.
type EncryptionParameters struct {
	Version    uint16
	Format     uint16
	Iterations uint32
	Salt       []byte
	WrappedKey []byte
	Verifier   []byte
}

// ParseEncryptionParameters decodes and validates a password verifier blob.
func ParseEncryptionParameters(b []byte) (EncryptionParameters, error) {
	return parseEncryptionParameters(b, defaultLimits())
}

func parseEncryptionParameters(b []byte, limits Limits) (EncryptionParameters, error) {
	p, err := readEncryptionParameters(b)
	if err != nil {
		return EncryptionParameters{}, err
	}
	if err := validateEncryptionParameters(p, limits); err != nil {
		return EncryptionParameters{}, err
	}
	return p, nil
}

func (p EncryptionParameters) MarshalBinary() ([]byte, error) {
	if err := validateEncryptionParameters(p, defaultLimits()); err != nil {
		return nil, err
	}
	return appendEncryptionParameters(make([]byte, 0, verifierBlobSize), p), nil
}

// ContentKey is a verified package content key. The only way to obtain one
// is DeriveKey (or NewEncryptionParameters), so every ContentKey has passed
// the verifier check of the parameters it was derived from.
type ContentKey struct {
	key      []byte
	verifier []byte
}

// Wipe zeroes the key material. The key is unusable afterwards.
func (k *ContentKey) Wipe() {
	if k == nil {
		return
	}
	zero(k.key)
	k.key = nil
}

func (k *ContentKey) usable() bool {
	return k != nil && len(k.key) == contentKeySize
}

func (k *ContentKey) clone() *ContentKey {
	return &ContentKey{key: bytes.Clone(k.key), verifier: bytes.Clone(k.verifier)}
}

// verifiedFor reports whether k was derived from parameters with verifier v.
func (k *ContentKey) verifiedFor(v []byte) bool {
	return k.usable() && subtle.ConstantTimeCompare(k.verifier, v) == 1
}

// DeriveKey turns password into the content key of p. Every way a password
// can be rejected yields ErrWrongPassword.
func DeriveKey(password string, p EncryptionParameters) (*ContentKey, error) {
	return deriveKey(password, p, defaultLimits())
}

func deriveKey(password string, p EncryptionParameters, limits Limits) (*ContentKey, error) {
	if err := validateEncryptionParameters(p, limits); err != nil {
		return nil, err
	}
	wrapping := pbkdf2.Key([]byte(password), p.Salt, int(p.Iterations), contentKeySize, sha1.New)
	defer zero(wrapping)

	candidate, err := unwrapKey(wrapping, p.WrappedKey)
	if err != nil {
		return nil, ErrWrongPassword
	}
	if subtle.ConstantTimeCompare(computeVerifier(candidate), p.Verifier) != 1 {
		zero(candidate)
		return nil, ErrWrongPassword
	}
	return &ContentKey{key: candidate, verifier: bytes.Clone(p.Verifier)}, nil
}

// NewEncryptionParameters creates parameters protecting a fresh random
// content key with password.
func NewEncryptionParameters(password string, iterations uint32) (EncryptionParameters, *ContentKey, error) {
	if iterations == 0 {
		iterations = DefaultIterations
	}
	salt := make([]byte, saltSize)
	if _, err := randRead(salt); err != nil {
		return EncryptionParameters{}, nil, err
	}
	key := make([]byte, contentKeySize)
	if _, err := randRead(key); err != nil {
		return EncryptionParameters{}, nil, err
	}
	wrapping := pbkdf2.Key([]byte(password), salt, int(iterations), contentKeySize, sha1.New)
	defer zero(wrapping)
	wrapped, err := wrapKey(wrapping, key)
	if err != nil {
		return EncryptionParameters{}, nil, err
	}
	p := EncryptionParameters{
		Version:    FormatVersion,
		Format:     verifierFormatPBKDF2AES128,
		Iterations: iterations,
		Salt:       salt,
		WrappedKey: wrapped,
		Verifier:   computeVerifier(key),
	}
	return p, &ContentKey{key: key, verifier: bytes.Clone(p.Verifier)}, nil
}

func computeVerifier(key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(verifierLabel))
	return mac.Sum(nil)
}

// PasswordVerifier checks candidate passwords against a package.
type PasswordVerifier struct {
	Params EncryptionParameters
	limits Limits
}

// CreateKey derives the content key for password. Parameters outside the
// limits the verifier was read with fail with ErrLimitExceeded before any
// derivation work.
func (v *PasswordVerifier) CreateKey(password string) (*ContentKey, error) {
	return deriveKey(password, v.Params, v.limits.withDefaults())
}

// Validate reports whether password opens the package.
func (v *PasswordVerifier) Validate(password string) bool {
	k, err := v.CreateKey(password)
	if err != nil {
		return false
	}
	k.Wipe()
	return true
}

// DecryptChunk decrypts one encrypted block laid out as IV followed by
// AES-CBC ciphertext with PKCS#7 padding.
func DecryptChunk(k *ContentKey, block []byte) ([]byte, error) {
	if !k.usable() {
		return nil, ErrNeedsPassword
	}
	if len(block) < 2*aes.BlockSize || len(block)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrDecrypt, len(block))
	}
	c, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	iv, ct := block[:aes.BlockSize], block[aes.BlockSize:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c, iv).CryptBlocks(pt, ct)
	out, ok := unpad(pt)
	if !ok {
		return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
	}
	return out, nil
}

// EncryptChunk is the inverse of DecryptChunk using a random IV.
func EncryptChunk(k *ContentKey, plaintext []byte) ([]byte, error) {
	if !k.usable() {
		return nil, ErrNeedsPassword
	}
	c, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, err
	}
	padded := pad(plaintext)
	out := make([]byte, aes.BlockSize+len(padded))
	if _, err := randRead(out[:aes.BlockSize]); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(c, out[:aes.BlockSize]).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// EncryptStream splits data into blocks of at most MaxChunkPayload bytes and
// encrypts each one behind a length header.
func EncryptStream(k *ContentKey, data []byte) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		n := min(len(data), MaxChunkPayload)
		block, err := EncryptChunk(k, data[:n])
		if err != nil {
			return nil, err
		}
		out = appendCipherBlockHeader(out, uint32(len(block)))
		out = append(out, block...)
		data = data[n:]
	}
	return out, nil
}

func decryptStream(k *ContentKey, data []byte, limits Limits) ([]byte, error) {
	var out []byte
	for i := 0; len(data) > 0; i++ {
		n, err := readCipherBlockHeader(data)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d header", ErrTruncatedChunk, i)
		}
		data = data[cipherBlockHeaderSize:]
		if uint64(n) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: block %d needs %d bytes, %d left", ErrTruncatedChunk, i, n, len(data))
		}
		pt, err := DecryptChunk(k, data[:n])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if uint64(len(out))+uint64(len(pt)) > limits.MaxComponentSize {
			return nil, fmt.Errorf("%w: decrypted stream exceeds %d bytes", ErrLimitExceeded, limits.MaxComponentSize)
		}
		out = append(out, pt...)
		data = data[n:]
	}
	return out, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Package iwa decodes iWork-style document packages into typed records.
//
// A package is a zip container. Its content components live under Index/ as
// .iwa entries; each one is a chunk stream of snappy-compressed blocks that
// is optionally encrypted with a key protected by the document password.
// Decoded components are sequences of archives: identified objects holding
// one or more protobuf messages whose layout is chosen by a numeric message
// type and the document family (Keynote, Pages or Numbers).
//
// # Pipeline
//
// For every component the decoding steps are:
//   - read the zip entry (store or deflate)
//   - decrypt each cipher block when the package is encrypted
//   - decompress the chunk stream, checking every declared chunk length
//   - split the result into archives and messages
//   - resolve a Shape for each message type and render it as a Record
//
// # Basic Usage
//
// Opening an unencrypted package:
//
//	b, err := iwa.Open("talk.key", nil)
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//	for _, name := range b.ComponentNames() {
//		records, err := b.Records(name)
//		...
//	}
//
// Encrypted packages need a content key derived from the password first:
//
//	v, hint, err := iwa.PasswordVerifierFor("secret.pages")
//	key, err := v.CreateKey(password)
//	b, err := iwa.Open("secret.pages", key)
//
// # Security Considerations
//
// Content is never decrypted with a key that has not passed the package's
// verifier check, and every rejected password yields the same
// ErrWrongPassword. Size limits (see [Limits]) guard against crafted
// containers and decompression bombs.
package iwa

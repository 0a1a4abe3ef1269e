// Package main provides C-compatible exports for the iwa library.
// Build with: go build -buildmode=c-shared -o libiwa.so
package main

/*
#include <stdlib.h>
#include <stdint.h>

// Result structure for operations that return data
typedef struct {
    char* data;
    int   data_len;
    char* error;
} IwaResult;
*/
import "C"

import (
	"encoding/json"
	"errors"
	"strings"
	"unsafe"

	"github.com/google/uuid"

	"github.com/logicossoftware/go-iwa"
)

func main() {}

// IwaFreeResult frees memory allocated by other Iwa functions.
// Must be called to avoid memory leaks.
//
//export IwaFreeResult
func IwaFreeResult(result C.IwaResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

// IwaFreeString frees a C string allocated by Go.
//
//export IwaFreeString
func IwaFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// makeResult creates a result with data.
func makeResult(data []byte) C.IwaResult {
	var result C.IwaResult
	if len(data) > 0 {
		result.data = (*C.char)(C.CBytes(data))
		result.data_len = C.int(len(data))
	}
	return result
}

// makeError creates a result with an error message prefixed by its class,
// e.g. "crypto: iwa: wrong password".
func makeError(err error) C.IwaResult {
	var result C.IwaResult
	result.error = C.CString(iwa.Classify(err).String() + ": " + err.Error())
	return result
}

func makeJSON(v any) C.IwaResult {
	b, err := json.Marshal(v)
	if err != nil {
		return makeError(err)
	}
	return makeResult(b)
}

func upperUUID(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}
	return strings.ToUpper(u.String())
}

// openWithPassword opens path, deriving a key from password when the
// package is encrypted. A NULL or empty password opens without a key.
func openWithPassword(path string, password *C.char) (*iwa.Bundle, error) {
	pw := ""
	if password != nil {
		pw = C.GoString(password)
	}
	if pw == "" {
		return iwa.Open(path, nil)
	}
	v, _, err := iwa.PasswordVerifierFor(path)
	if errors.Is(err, iwa.ErrNotEncrypted) {
		return iwa.Open(path, nil)
	}
	if err != nil {
		return nil, err
	}
	key, err := v.CreateKey(pw)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()
	return iwa.Open(path, key)
}

// IwaProbe returns 1 if path looks like a document package, 0 otherwise.
//
//export IwaProbe
func IwaProbe(path *C.char) C.int {
	if iwa.PackageLooksValid(C.GoString(path)) {
		return 1
	}
	return 0
}

// IwaProperties returns the package properties and encryption state as JSON.
// No password is needed.
//
//export IwaProperties
func IwaProperties(path *C.char) C.IwaResult {
	out, err := packageProperties(C.GoString(path))
	if err != nil {
		return makeError(err)
	}
	return makeJSON(out)
}

// packageProperties collects what IwaProperties reports.
func packageProperties(path string) (map[string]any, error) {
	props, err := iwa.PropertiesFor(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"documentId":        upperUUID(props.DocumentID),
		"versionId":         upperUUID(props.VersionID),
		"fileFormatVersion": props.FileFormatVersion,
		"revision":          props.Revision,
		"multiPage":         props.IsMultiPage,
		"encrypted":         false,
	}
	_, hint, err := iwa.PasswordVerifierFor(path)
	switch {
	case err == nil:
		out["encrypted"] = true
		out["passwordHint"] = hint
	case !errors.Is(err, iwa.ErrNotEncrypted):
		return nil, err
	}
	return out, nil
}

// IwaComponentNames returns the decodable component names as a JSON array.
//
//export IwaComponentNames
func IwaComponentNames(path, password *C.char) C.IwaResult {
	b, err := openWithPassword(C.GoString(path), password)
	if err != nil {
		return makeError(err)
	}
	defer b.Close()
	return makeJSON(b.ComponentNames())
}

// IwaComponentData returns the decoded bytes of one component.
//
//export IwaComponentData
func IwaComponentData(path, password, component *C.char) C.IwaResult {
	b, err := openWithPassword(C.GoString(path), password)
	if err != nil {
		return makeError(err)
	}
	defer b.Close()
	data, err := b.DataForComponent(C.GoString(component))
	if err != nil {
		return makeError(err)
	}
	return makeResult(data)
}

// IwaRecords returns the records of one component as a JSON array.
//
//export IwaRecords
func IwaRecords(path, password, component *C.char) C.IwaResult {
	b, err := openWithPassword(C.GoString(path), password)
	if err != nil {
		return makeError(err)
	}
	defer b.Close()
	recs, err := b.Records(C.GoString(component))
	if err != nil {
		return makeError(err)
	}
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = map[string]any{
			"identifier":       r.Identifier,
			"messageType":      r.MessageType,
			"typeName":         r.TypeName,
			"contents":         r.Contents,
			"objectReferences": r.ObjectReferences,
		}
	}
	return makeJSON(out)
}

// IwaValidatePassword returns 1 if password opens the encrypted package at
// path, 0 if it does not and -1 if the verifier cannot be read.
//
//export IwaValidatePassword
func IwaValidatePassword(path, password *C.char) C.int {
	v, _, err := iwa.PasswordVerifierFor(C.GoString(path))
	if err != nil {
		return -1
	}
	if v.Validate(C.GoString(password)) {
		return 1
	}
	return 0
}

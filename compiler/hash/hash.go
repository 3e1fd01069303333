// Package hash computes content fingerprints of Loom methods.
//
// A fingerprint is the SHA-256 of a canonical CBOR encoding of the
// normalized (position-free) method AST: the same body under the same
// selector always hashes the same, regardless of formatting, comments
// or where in a file it was defined.
package hash

import (
	"crypto/sha256"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/loom/compiler"
)

// cborEncMode uses canonical options so map key order and number
// encodings are deterministic across runs and platforms.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

// HashMethod computes the SHA-256 content hash of a method definition.
func HashMethod(def *compiler.MethodDef) ([32]byte, error) {
	n, err := normalizeMethod(def)
	if err != nil {
		return [32]byte{}, err
	}
	data, err := cborEncMode.Marshal(n)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Serialize returns the canonical CBOR bytes a method hashes over.
// Exposed for golden tests and the source store.
func Serialize(def *compiler.MethodDef) ([]byte, error) {
	n, err := normalizeMethod(def)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(n)
}

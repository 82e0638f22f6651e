package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
)

// Signature is a 32-byte digest uniquely identifying a job's input
// environment, grounded on spec.md §4.3/§8's "32-byte signature digest."
type Signature [32]byte

// Input is everything a job declares as affecting its outcome: positional
// and keyword arguments, the environment variables it read (via
// taskconfig.Accessor.Accessed), the files it read, and the results of any
// named prerequisites it consumed.
type Input struct {
	Args    []string
	Kwargs  map[string]string
	Env     map[string]string // name -> value, from Accessor.Accessed()
	Files   []string          // paths read; hashed here, not by the caller
	Prereqs map[string]any    // named prerequisite results, gob-encoded
}

// Compute hashes in hashes a deterministic canonical encoding of in:
// SHA-256 over positional args, keyword args (sorted by key), env accesses
// (sorted by name), file content hashes (sorted by path), and named
// prerequisite results (sorted by name, gob-encoded). A file that cannot be
// read is reported as a *SignatureError, not folded into the digest.
func Compute(in Input) (Signature, error) {
	var buf bytes.Buffer

	for _, a := range in.Args {
		writeString(&buf, a)
	}

	for _, k := range sortedKeys(in.Kwargs) {
		writeString(&buf, k)
		writeString(&buf, in.Kwargs[k])
	}

	for _, name := range sortedKeys(in.Env) {
		writeString(&buf, name)
		writeString(&buf, in.Env[name])
	}

	paths := append([]string(nil), in.Files...)
	sort.Strings(paths)
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return Signature{}, &SignatureError{Path: p, Err: err}
		}
		digest := sha256.Sum256(content)
		writeString(&buf, p)
		buf.Write(digest[:])
	}

	for _, name := range sortedKeys(in.Prereqs) {
		writeString(&buf, name)
		enc, err := encodeGob(in.Prereqs[name])
		if err != nil {
			return Signature{}, fmt.Errorf("encode prerequisite result %q: %w", name, err)
		}
		writeString(&buf, string(enc))
	}

	return sha256.Sum256(buf.Bytes()), nil
}

// writeString appends a length-prefixed field so concatenation cannot be
// ambiguous (no JSON is used, to keep field ordering byte-exact).
func writeString(buf *bytes.Buffer, s string) {
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	// Encode the concrete value, not a *any: encoding through a pointer to
	// interface would require every result type to be gob.Register'd.
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

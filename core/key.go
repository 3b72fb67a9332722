package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Key is the canonical identity of a configuration: the hex SHA-256 digest of
// the entry's identity-relevant fields in a deterministic, order-independent
// encoding. Two entries with the same parameters supplied in any order share
// a key; auto-filled seeds never enter it, pinned seeds always do.
type Key string

// keyDomain seeds every digest so keys cannot collide with unrelated sha256
// uses of the same parameter text.
const keyDomain = "gridsweep/key/v1"

// KeyOf derives the canonical key for a parameter set. Parameters fold in
// sorted name order; names listed in exclude (the auto-filled seed fields)
// are skipped. The phase discriminator is part of the identity.
func KeyOf(phase string, params ParamSet, exclude ...string) Key {
	h := sha256.New()
	writeField(h, []byte(keyDomain))
	writeField(h, []byte(phase))

	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	for _, name := range params.Names() {
		if _, ok := skip[name]; ok {
			continue
		}
		tag, text := params[name].canon()
		writeField(h, []byte(name))
		h.Write([]byte{tag})
		writeField(h, []byte(text))
	}

	return Key(hex.EncodeToString(h.Sum(nil)))
}

// writeField writes a length-prefixed field into the hash. The 8-byte
// big-endian prefix keeps adjacent fields unambiguous, so "ab"+"c" can never
// hash like "a"+"bc".
func writeField(h hash.Hash, data []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	h.Write(lenBuf[:])
	h.Write(data)
}

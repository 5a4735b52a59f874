package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestKey namespaces the SHA-256 of parts under prefix, for Redis keys
// derived from request payloads.
func DigestKey(prefix string, parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

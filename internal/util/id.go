// Package util holds tiny helpers shared across loom packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 16

// NewID returns a random identifier of the form "prefix_<32 hex chars>".
// The prefix keeps ids self-describing in stored documents and logs:
// conv for conversations, msg for messages, pending for assistant
// placeholders, ses for sessions, req for requests.
func NewID(prefix string) string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	return prefix + "_" + hex.EncodeToString(buf)
}

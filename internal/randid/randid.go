// Package randid generates random tokens used as fork filenames and
// checkpoint-name disambiguators. Fixed-width, regex-validated, the way the
// teacher's checkpoint/id package wraps crypto/rand for 12-hex-char
// checkpoint IDs — here backed by google/uuid, already in the dependency
// closure, instead of hand-rolled hex encoding.
package randid

import (
	"strings"

	"github.com/google/uuid"
)

// ForkID returns a random token suitable for a fork transcript's basename:
// dirname(transcript)/<ForkID()>.jsonl.
func ForkID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Disambiguator returns a short random suffix appended to a checkpoint name
// that collided with an existing one on disk, e.g. "auto_1_2025...-f3a9".
func Disambiguator() string {
	id := uuid.NewString()
	return id[len(id)-4:]
}

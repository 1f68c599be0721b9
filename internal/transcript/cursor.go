// Package transcript implements the Transcript Manager (spec.md §4.2): tail
// reads a JSONL transcript owned by an external agent process, computes
// byte-exact cursors and fingerprints, and materialises prefixes as forks or
// in-place rewrites. It never parses more of a transcript line than the
// agent schema declares (spec.md §9 "opaque event parsing").
package transcript

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rewindhq/rewind/internal/config"
)

// ErrNoEvents is returned when a transcript has no complete line to cursor.
var ErrNoEvents = errors.New("transcript has no complete events")

// ErrInsufficientPrompts is returned when find_boundary_by_user_prompts is
// asked for more user prompts than the transcript contains.
var ErrInsufficientPrompts = errors.New("transcript has fewer user prompts than requested")

// ErrTranscriptUnavailable is returned when a transcript path is missing or
// unreadable; context-affecting operations degrade to "chat unavailable"
// upstream (spec.md §7).
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// tailSampleBytes bounds the tail_sha256 fingerprint window (spec.md §3).
const tailSampleBytes = 4096

// maxLineBuffer bounds a single JSONL line's length during scanning.
const maxLineBuffer = 64 << 20

// Cursor is a byte-exact pointer into a JSONL transcript plus fingerprints
// of its prefix (spec.md §3).
type Cursor struct {
	ByteOffsetEnd int64  `json:"byte_offset_end"`
	LastEventID   string `json:"last_event_id"`
	PrefixSHA256  string `json:"prefix_sha256"`
	TailSHA256    string `json:"tail_sha256"`
}

// line is one JSONL record plus the byte offset range it occupies,
// including its terminating newline.
type line struct {
	start, end int64
	bytes      []byte
}

// scanLines reads every complete line of f (newline-terminated or, for the
// final line, EOF-terminated) and records its byte range. Incomplete final
// lines (no trailing newline and the agent is still writing) are dropped,
// matching the "last complete line" semantics transcripts need.
func scanLines(f *os.File) ([]line, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBuffer)

	var lines []line
	var offset int64
	for scanner.Scan() {
		b := scanner.Bytes()
		cp := make([]byte, len(b))
		copy(cp, b)
		end := offset + int64(len(cp)) + 1 // +1 for the newline the Scanner stripped
		lines = append(lines, line{start: offset, end: end, bytes: cp})
		offset = end
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// eventIDFrom extracts the event id from a single JSONL line using the
// agent schema's declared field list, trying each in order. Only the
// declared fields are ever inspected — no dynamic reflection or arbitrary
// JSON walking (spec.md §9).
func eventIDFrom(raw []byte, schema config.AgentSchema) string {
	if len(schema.EventIDField) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range schema.EventIDField {
		v, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// ComputeCursor scans transcriptPath and returns a cursor at the end of its
// last complete JSON line.
func ComputeCursor(transcriptPath string, schema config.AgentSchema) (Cursor, error) {
	f, err := os.Open(transcriptPath) //nolint:gosec // path supplied by hook adapter / manifest, not user input
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err)
	}
	defer f.Close()

	lines, err := scanLines(f)
	if err != nil {
		return Cursor{}, fmt.Errorf("scanning transcript: %w", err)
	}

	// Find the last line that actually parses as JSON; a trailing
	// half-written line is skipped rather than treated as the boundary.
	idx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if json.Valid(lines[i].bytes) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Cursor{}, ErrNoEvents
	}

	prefixSHA, tailSHA, err := hashPrefix(f, lines[idx].end)
	if err != nil {
		return Cursor{}, fmt.Errorf("hashing transcript prefix: %w", err)
	}

	return Cursor{
		ByteOffsetEnd: lines[idx].end,
		LastEventID:   eventIDFrom(lines[idx].bytes, schema),
		PrefixSHA256:  prefixSHA,
		TailSHA256:    tailSHA,
	}, nil
}

// hashPrefix computes sha256 over f[0:n) and sha256 over the final
// tailSampleBytes of that prefix.
func hashPrefix(f *os.File, n int64) (prefixHex, tailHex string, err error) {
	prefixHasher := sha256.New()
	if _, err := io.Copy(prefixHasher, io.NewSectionReader(f, 0, n)); err != nil {
		return "", "", err
	}

	tailStart := n - tailSampleBytes
	if tailStart < 0 {
		tailStart = 0
	}
	tailHasher := sha256.New()
	if _, err := io.Copy(tailHasher, io.NewSectionReader(f, tailStart, n-tailStart)); err != nil {
		return "", "", err
	}

	return hex.EncodeToString(prefixHasher.Sum(nil)), hex.EncodeToString(tailHasher.Sum(nil)), nil
}

// userPrompt is the minimal shape find_boundary_by_user_prompts inspects:
// at most two fields (spec.md §4.2 "inspects at most two fields").
type userPrompt struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

func isUserLine(raw []byte) bool {
	var p userPrompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	return p.Type == "user" || p.Role == "user"
}

// FindBoundaryByUserPrompts scans transcriptPath for the n-th user-role
// message counting from the end, and returns a cursor at the start of that
// message's line — i.e. the prefix excluding the n-th user prompt and
// everything after it (spec.md §4.2).
func FindBoundaryByUserPrompts(transcriptPath string, n int, schema config.AgentSchema) (Cursor, error) {
	if n <= 0 {
		return Cursor{}, fmt.Errorf("n must be positive, got %d", n)
	}

	f, err := os.Open(transcriptPath) //nolint:gosec // path supplied by hook adapter / manifest
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err)
	}
	defer f.Close()

	lines, err := scanLines(f)
	if err != nil {
		return Cursor{}, fmt.Errorf("scanning transcript: %w", err)
	}

	found := 0
	for i := len(lines) - 1; i >= 0; i-- {
		if !isUserLine(lines[i].bytes) {
			continue
		}
		found++
		if found != n {
			continue
		}
		prefixSHA, tailSHA, err := hashPrefix(f, lines[i].start)
		if err != nil {
			return Cursor{}, fmt.Errorf("hashing transcript prefix: %w", err)
		}
		return Cursor{
			ByteOffsetEnd: lines[i].start,
			LastEventID:   eventIDFrom(lines[i].bytes, schema),
			PrefixSHA256:  prefixSHA,
			TailSHA256:    tailSHA,
		}, nil
	}
	return Cursor{}, ErrInsufficientPrompts
}

// VerifyPrefix reports whether transcriptPath's current first
// cursor.ByteOffsetEnd bytes still hash to cursor.PrefixSHA256. It checks
// the cheap tail_sha256 fingerprint first and only hashes the full prefix
// if that matches (spec.md §4.2 fork fast path).
func VerifyPrefix(transcriptPath string, cursor Cursor) (bool, error) {
	f, err := os.Open(transcriptPath) //nolint:gosec // path supplied by hook adapter / manifest
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return false, err
	}
	if size < cursor.ByteOffsetEnd {
		return false, nil
	}

	prefixSHA, tailSHA, err := hashPrefix(f, cursor.ByteOffsetEnd)
	if err != nil {
		return false, err
	}
	if tailSHA != cursor.TailSHA256 {
		return false, nil
	}
	return prefixSHA == cursor.PrefixSHA256, nil
}

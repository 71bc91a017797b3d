package payload

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
)

// Static replays a user-supplied file's content. The file is read once at
// construction; Serialize never touches the filesystem.
type Static struct {
	data []byte
}

// NewStatic reads path once and returns a Static serializer over its bytes.
// The content is assumed to be line-oriented but no other grammar is
// enforced — whatever the file holds is exactly what gets replayed.
func NewStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("payload: reading static file %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("payload: static file %q is empty", path)
	}
	return &Static{data: data}, nil
}

// Serialize emits a prefix of the file's bytes fitting sizeHint, trimmed
// back to the last newline boundary when one is available. rng is unused:
// static content is, by construction, not randomized.
func (s *Static) Serialize(_ *rand.Rand, sizeHint int, out *bytes.Buffer) error {
	if sizeHint <= 0 || len(s.data) == 0 {
		return nil
	}

	n := sizeHint
	if n > len(s.data) {
		n = len(s.data)
	}

	prefix := s.data[:n]
	if n < len(s.data) {
		if idx := bytes.LastIndexByte(prefix, '\n'); idx >= 0 {
			prefix = prefix[:idx+1]
		} else {
			// No newline within the hint at all: this is the documented
			// empty-output quirk — the caller's builder skips the chunk.
			return nil
		}
	}

	out.Write(prefix)
	return nil
}

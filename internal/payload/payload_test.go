package payload

import (
	"bytes"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinylib/msgp/msgp"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xabad1dea))
}

func TestSyslog5424_NeverExceedsHint(t *testing.T) {
	s := Syslog5424{}
	for _, hint := range []int{0, 1, 10, 40, 200, 4096} {
		var buf bytes.Buffer
		if err := s.Serialize(newRNG(uint64(hint)), hint, &buf); err != nil {
			t.Fatalf("hint %d: %v", hint, err)
		}
		if buf.Len() > hint {
			t.Fatalf("hint %d: got %d bytes, exceeds hint", hint, buf.Len())
		}
	}
}

func TestSyslog5424_RecordsAreNewlineTerminated(t *testing.T) {
	s := Syslog5424{}
	var buf bytes.Buffer
	if err := s.Serialize(newRNG(5), 4096, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty output for a generous hint")
	}
	text := buf.String()
	if text[len(text)-1] != '\n' {
		t.Fatal("expected trailing newline on last record")
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if !strings.HasPrefix(line, "<") {
			t.Fatalf("record missing PRI prefix: %q", line)
		}
	}
}

func TestSyslog5424_DeterministicForSameSeed(t *testing.T) {
	var a, b bytes.Buffer
	Syslog5424{}.Serialize(newRNG(99), 2048, &a)
	Syslog5424{}.Serialize(newRNG(99), 2048, &b)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("same seed must produce identical output")
	}
}

func TestFluent_NeverExceedsHintAndParses(t *testing.T) {
	f := Fluent{}
	for _, hint := range []int{0, 1, 16, 64, 1024} {
		var buf bytes.Buffer
		if err := f.Serialize(newRNG(uint64(hint)+1), hint, &buf); err != nil {
			t.Fatalf("hint %d: %v", hint, err)
		}
		if buf.Len() > hint {
			t.Fatalf("hint %d: got %d bytes, exceeds hint", hint, buf.Len())
		}
		r := msgp.NewReader(bytes.NewReader(buf.Bytes()))
		for {
			sz, err := r.ReadArrayHeader()
			if err != nil {
				if err == io.EOF {
					break
				}
				t.Fatalf("hint %d: decoding array header: %v", hint, err)
			}
			if sz != 3 {
				t.Fatalf("hint %d: expected 3-element message array, got %d", hint, sz)
			}
			if _, err := r.ReadString(); err != nil {
				t.Fatalf("hint %d: decoding tag: %v", hint, err)
			}
			if _, err := r.ReadInt64(); err != nil {
				t.Fatalf("hint %d: decoding time: %v", hint, err)
			}
			mapSz, err := r.ReadMapHeader()
			if err != nil {
				t.Fatalf("hint %d: decoding record map: %v", hint, err)
			}
			for i := uint32(0); i < mapSz; i++ {
				if _, err := r.ReadString(); err != nil {
					t.Fatalf("hint %d: decoding key: %v", hint, err)
				}
				if _, err := r.ReadString(); err != nil {
					t.Fatalf("hint %d: decoding value: %v", hint, err)
				}
			}
		}
	}
}

func TestFluent_DeterministicForSameSeed(t *testing.T) {
	var a, b bytes.Buffer
	Fluent{}.Serialize(newRNG(7), 2048, &a)
	Fluent{}.Serialize(newRNG(7), 2048, &b)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("same seed must produce identical output")
	}
}

func TestStatic_EmitsPrefixAtLineBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.log")
	content := "first line\nsecond line\nthird line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStatic(path)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.Serialize(nil, len("first line\nsecond"), &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "first line\n" {
		t.Fatalf("expected prefix trimmed to line boundary, got %q", buf.String())
	}
}

func TestStatic_HintBelowFirstLineYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lines.log")
	if err := os.WriteFile(path, []byte("a very long first line with no break\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStatic(path)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.Serialize(nil, 4, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output quirk, got %d bytes", buf.Len())
	}
}

func TestNewStatic_RejectsMissingFile(t *testing.T) {
	if _, err := NewStatic("/nonexistent/path/to/file"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package vocab

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBlankAndMarker(t *testing.T) {
	table, err := Parse("▁hello 0\nworld 1\n<blk> 2\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Size() != 3 {
		t.Fatalf("expected 3 entries, got %d", table.Size())
	}
	if table.BlankID() != 2 {
		t.Fatalf("expected blank id 2, got %d", table.BlankID())
	}
	tok, ok := table.Token(0)
	if !ok {
		t.Fatal("expected token 0 to exist")
	}
	if tok != " hello" {
		t.Fatalf("expected marker normalized to space, got %q", tok)
	}
}

func TestParseMalformedLine(t *testing.T) {
	if _, err := Parse("solo\n"); err == nil {
		t.Fatal("expected error for line with a single field")
	}
}

func TestParseInvalidID(t *testing.T) {
	if _, err := Parse("token abc\n"); err == nil {
		t.Fatal("expected error for non-integer id")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte("▁a 0\n▁b 1\n<blk> 2\n"), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load vocab: %v", err)
	}
	if table.BlankID() != 2 {
		t.Fatalf("expected blank id 2, got %d", table.BlankID())
	}
}

func TestDetokenizeCollapsesWhitespace(t *testing.T) {
	table, err := Parse("▁hello 0\n▁ 1\n▁world 2\n<blk> 3\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := table.Detokenize([]int64{0, 1, 2})
	if got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
	if table.Detokenize(nil) != "" {
		t.Fatal("expected empty string for no tokens")
	}
	// unknown ids are dropped
	if got := table.Detokenize([]int64{0, 99}); got != "hello" {
		t.Fatalf("expected unknown id dropped, got %q", got)
	}
}

// Package vocab loads the subword vocabulary shipped with a model and turns
// emitted token ids back into text.
package vocab

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// blankToken is the literal vocabulary entry meaning "no emission".
	blankToken = "<blk>"
	// wordBoundaryMarker is the SentencePiece codepoint that denotes a
	// leading word boundary inside a token.
	wordBoundaryMarker = '▁'
)

// Table is an immutable id -> subword mapping built once at load time.
type Table struct {
	tokens  map[int64]string
	blankID int64
}

// Load parses a whitespace-delimited two-column table (token, integer id)
// from path. The word-boundary marker inside a token is rewritten to an
// ordinary space, and the id of the blank entry is recorded separately.
func Load(path string) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Parse(string(content))
}

// Parse builds a Table from raw vocabulary text.
func Parse(content string) (*Table, error) {
	tokens := make(map[int64]string)
	var blankID int64

	for i, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("vocabulary line %d is malformed: %q", i+1, strings.TrimSpace(line))
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vocabulary line %d has invalid id %q", i+1, fields[1])
		}
		if fields[0] == blankToken {
			blankID = id
		}
		tokens[id] = strings.ReplaceAll(fields[0], string(wordBoundaryMarker), " ")
	}

	return &Table{tokens: tokens, blankID: blankID}, nil
}

// Size returns the number of vocabulary entries.
func (t *Table) Size() int { return len(t.tokens) }

// BlankID returns the id of the blank token.
func (t *Table) BlankID() int64 { return t.blankID }

// Token returns the (space-normalized) subword string for id.
func (t *Table) Token(id int64) (string, bool) {
	s, ok := t.tokens[id]
	return s, ok
}

// Detokenize concatenates the emitted tokens in order, trims leading and
// trailing whitespace, and collapses internal whitespace runs to single
// spaces. Unknown ids are dropped.
func (t *Table) Detokenize(ids []int64) string {
	var b strings.Builder
	for _, id := range ids {
		if s, ok := t.tokens[id]; ok {
			b.WriteString(s)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

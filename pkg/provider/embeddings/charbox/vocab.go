package charbox

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/acuvox/acuvox/internal/textnorm"
)

// unkToken is the vocabulary entry used for characters outside the table.
const unkToken = "[UNK]"

// Vocab is the fixed character vocabulary table of the encoder model: one
// token per line, line number = integer id. It is read-only after loading.
type Vocab struct {
	tokens []string
	ids    map[string]int64
	unk    int64
}

// LoadVocab reads a character vocabulary file from path.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("charbox: open vocab %q: %w", path, err)
	}
	defer f.Close()

	v, err := LoadVocabFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("charbox: parse vocab %q: %w", path, err)
	}
	return v, nil
}

// LoadVocabFromReader parses a vocabulary from r, one token per line.
// Lines are taken verbatim apart from the trailing newline, so a line
// containing a single space is a valid (and typical) token.
func LoadVocabFromReader(r io.Reader) (*Vocab, error) {
	v := &Vocab{ids: make(map[string]int64), unk: 1}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := scanner.Text()
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int64(len(v.tokens))
		}
		v.tokens = append(v.tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	if len(v.tokens) == 0 {
		return nil, fmt.Errorf("vocab is empty")
	}

	if id, ok := v.ids[unkToken]; ok {
		v.unk = id
	}
	return v, nil
}

// Size returns the number of tokens in the vocabulary.
func (v *Vocab) Size() int { return len(v.tokens) }

// ID returns the integer id for the given single-character token, falling
// back to the unknown-token id for characters outside the table.
func (v *Vocab) ID(tok string) int64 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.unk
}

// Vectorize normalizes each text and maps its characters through the
// vocabulary table into a flat row-major [len(texts) × seqLen] id buffer,
// padded with zeros and truncated at seqLen. This is the exact input layout
// the encoder model expects.
func (v *Vocab) Vectorize(texts []string, seqLen int) []int64 {
	out := make([]int64, len(texts)*seqLen)
	for i, t := range texts {
		row := out[i*seqLen : (i+1)*seqLen]
		j := 0
		for _, r := range textnorm.Normalize(t) {
			if j >= seqLen {
				break
			}
			row[j] = v.ID(string(r))
			j++
		}
	}
	return out
}

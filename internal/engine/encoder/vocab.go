package encoder

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Special tokens every vocabulary must contain.
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// Vocab holds a WordPiece vocabulary. Token IDs are line numbers (0-indexed)
// of the vocab.txt file it was loaded from.
type Vocab struct {
	tokenToID map[string]int64
	idToToken []string

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

// LoadVocab reads a vocab.txt file where each line is a token and the line
// number (0-indexed) is the token ID.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", path)
	}
	return NewVocab(tokens)
}

// NewVocab builds a vocabulary from an ordered token list.
func NewVocab(tokens []string) (*Vocab, error) {
	v := &Vocab{
		tokenToID: make(map[string]int64, len(tokens)),
		idToToken: tokens,
	}
	for i, tok := range tokens {
		if _, dup := v.tokenToID[tok]; !dup {
			v.tokenToID[tok] = int64(i)
		}
	}

	specials := []struct {
		name string
		dest *int64
	}{
		{PadToken, &v.padID},
		{UnkToken, &v.unkID},
		{ClsToken, &v.clsID},
		{SepToken, &v.sepID},
	}
	for _, s := range specials {
		id, ok := v.tokenToID[s.name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", s.name)
		}
		*s.dest = id
	}
	if v.padID != 0 {
		return nil, fmt.Errorf("vocab: %s must have id 0, got %d", PadToken, v.padID)
	}
	return v, nil
}

// BuildVocab derives a vocabulary from a corpus: the special tokens, every
// character seen (both as a word start and as a "##" continuation) so any
// word over those characters decomposes, then every whole word.
func BuildVocab(texts []string) *Vocab {
	chars := map[string]struct{}{}
	words := map[string]struct{}{}
	for _, text := range texts {
		for _, word := range basicTokenize(text) {
			words[word] = struct{}{}
			for _, r := range word {
				chars[string(r)] = struct{}{}
			}
		}
	}

	tokens := []string{PadToken, UnkToken, ClsToken, SepToken, MaskToken}
	seen := make(map[string]struct{}, len(tokens)+2*len(chars)+len(words))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}
	add := func(tok string) {
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, c := range sortedKeys(chars) {
		add(c)
	}
	for _, c := range sortedKeys(chars) {
		add("##" + c)
	}
	for _, w := range sortedKeys(words) {
		add(w)
	}

	// Specials are present and [PAD] is first, so this cannot fail.
	v, _ := NewVocab(tokens)
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the vocabulary as vocab.txt, one token per line.
func (v *Vocab) Save(path string) error {
	var b strings.Builder
	for _, tok := range v.idToToken {
		b.WriteString(tok)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	return nil
}

// Lookup returns the token ID for the given token, or the [UNK] ID if not found.
func (v *Vocab) Lookup(token string) int64 {
	if id, ok := v.tokenToID[token]; ok {
		return id
	}
	return v.unkID
}

// Contains reports whether the token is in the vocabulary.
func (v *Vocab) Contains(token string) bool {
	_, ok := v.tokenToID[token]
	return ok
}

// Token returns the token for id, or "" when out of range.
func (v *Vocab) Token(id int64) string {
	if id < 0 || id >= int64(len(v.idToToken)) {
		return ""
	}
	return v.idToToken[id]
}

// Size returns the number of tokens in the vocabulary.
func (v *Vocab) Size() int {
	return len(v.idToToken)
}

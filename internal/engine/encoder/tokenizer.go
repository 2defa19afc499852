package encoder

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxWordRunes is the longest basic token WordPiece will try to decompose.
const maxWordRunes = 200

// Tokenized is one statement converted to model input. Every slice has the
// tokenizer's maximum length: [CLS] tokens... [SEP] [PAD]...
type Tokenized struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	// Length is the number of real (non-padding) positions.
	Length int
}

// batch holds several tokenized texts packed for ONNX inference. All slices
// are flat: [batchSize * seqLen].
type batch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	batchSize     int64
	seqLen        int64
}

// Tokenizer performs BERT-style WordPiece tokenization to a fixed length.
type Tokenizer struct {
	vocab  *Vocab
	maxLen int
}

// NewTokenizer creates a tokenizer producing sequences of exactly maxLen ids.
func NewTokenizer(v *Vocab, maxLen int) (*Tokenizer, error) {
	if v == nil {
		return nil, fmt.Errorf("tokenizer: nil vocabulary")
	}
	if maxLen < 2 {
		return nil, fmt.Errorf("tokenizer: max length %d leaves no room for [CLS] and [SEP]", maxLen)
	}
	return &Tokenizer{vocab: v, maxLen: maxLen}, nil
}

// MaxLength returns the fixed sequence length.
func (t *Tokenizer) MaxLength() int { return t.maxLen }

// Vocab returns the tokenizer's vocabulary.
func (t *Tokenizer) Vocab() *Vocab { return t.vocab }

// Tokenize converts text into token IDs with [CLS] and [SEP], truncated and
// padded to the maximum length.
func (t *Tokenizer) Tokenize(text string) (Tokenized, error) {
	if !utf8.ValidString(text) {
		return Tokenized{}, &EncodingError{Reason: "text is not valid UTF-8"}
	}

	tokens := t.wordpiece(basicTokenize(text))

	maxTokens := t.maxLen - 2
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	ids := make([]int64, t.maxLen)
	mask := make([]int64, t.maxLen)
	typeIDs := make([]int64, t.maxLen)

	ids[0] = t.vocab.clsID
	mask[0] = 1
	for i, tok := range tokens {
		ids[i+1] = t.vocab.Lookup(tok)
		mask[i+1] = 1
	}
	ids[len(tokens)+1] = t.vocab.sepID
	mask[len(tokens)+1] = 1
	// Remaining positions stay 0 (padID=0, mask=0, typeIDs=0).

	return Tokenized{
		InputIDs:      ids,
		AttentionMask: mask,
		TokenTypeIDs:  typeIDs,
		Length:        len(tokens) + 2,
	}, nil
}

// tokenizeBatch tokenizes multiple texts and packs them into flat slices
// padded to the longest sequence in the batch.
func (t *Tokenizer) tokenizeBatch(texts []string) (batch, error) {
	if len(texts) == 0 {
		return batch{}, nil
	}

	seqs := make([]Tokenized, len(texts))
	var seqLen int64
	for i, text := range texts {
		tk, err := t.Tokenize(text)
		if err != nil {
			return batch{}, err
		}
		seqs[i] = tk
		if int64(tk.Length) > seqLen {
			seqLen = int64(tk.Length)
		}
	}

	batchSize := int64(len(texts))
	total := batchSize * seqLen
	out := batch{
		inputIDs:      make([]int64, total),
		attentionMask: make([]int64, total),
		tokenTypeIDs:  make([]int64, total),
		batchSize:     batchSize,
		seqLen:        seqLen,
	}
	for i, s := range seqs {
		offset := int64(i) * seqLen
		copy(out.inputIDs[offset:offset+seqLen], s.InputIDs[:seqLen])
		copy(out.attentionMask[offset:offset+seqLen], s.AttentionMask[:seqLen])
	}
	return out, nil
}

// basicTokenize applies BERT's BasicTokenizer: clean, lowercase, strip
// accents, split on whitespace and punctuation, handle CJK characters.
func basicTokenize(text string) []string {
	text = cleanText(text)
	text = tokenizeChineseChars(text)
	text = strings.ToLower(text)
	text = stripAccents(text)

	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, splitOnPunctuation(word)...)
	}
	return tokens
}

// wordpiece applies the WordPiece algorithm to a list of basic tokens.
func (t *Tokenizer) wordpiece(tokens []string) []string {
	var result []string
	for _, token := range tokens {
		if len(token) == 0 {
			continue
		}
		result = append(result, t.wordpieceToken(token)...)
	}
	return result
}

// wordpieceToken decomposes a single basic token into WordPiece subwords,
// greedily taking the longest known prefix.
func (t *Tokenizer) wordpieceToken(token string) []string {
	runes := []rune(token)
	if len(runes) > maxWordRunes {
		return []string{UnkToken}
	}

	var subTokens []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if t.vocab.Contains(sub) {
				subTokens = append(subTokens, sub)
				found = true
				break
			}
			end--
		}
		if !found {
			return []string{UnkToken}
		}
		start = end
	}
	return subTokens
}

// cleanText removes control characters and replaces whitespace with spaces.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == utf8.RuneError || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripAccents removes combining diacritical marks after NFD normalization.
func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tokenizeChineseChars adds spaces around CJK Unified Ideographs so they
// become individual tokens.
func tokenizeChineseChars(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if isChineseChar(r) {
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitOnPunctuation splits a word at each punctuation character, keeping
// the punctuation as separate tokens.
func splitOnPunctuation(word string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range word {
		if isPunctuation(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII 33-47, 58-64, 91-96 and 123-126 count as punctuation even where
	// Unicode classifies them as symbols.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

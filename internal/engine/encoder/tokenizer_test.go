package encoder

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
)

const testVocabPath = "../../../models/vocab.txt"

func skipIfNoVocab(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testVocabPath); os.IsNotExist(err) {
		t.Skip("vocab.txt not found; place a bert-base-uncased vocab in models/")
	}
}

// corpusTokenizer builds a tokenizer over a tiny corpus vocabulary:
// [PAD]=0 [UNK]=1 [CLS]=2 [SEP]=3 [MASK]=4, d e h l o r w = 5..11,
// ##d ##e ##h ##l ##o ##r ##w = 12..18, hello=19, world=20.
func corpusTokenizer(t *testing.T, maxLen int) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer(BuildVocab([]string{"hello world"}), maxLen)
	if err != nil {
		t.Fatalf("NewTokenizer error: %v", err)
	}
	return tok
}

func TestTokenizeCorpusVocab(t *testing.T) {
	tok := corpusTokenizer(t, 8)

	tests := []struct {
		name string
		text string
		ids  []int64
	}{
		{"whole words", "hello world", []int64{2, 19, 20, 3}},
		{"case and accents", "HÉLLO", []int64{2, 19, 3}},
		{"subword decomposition", "held", []int64{2, 7, 13, 15, 12, 3}},
		{"unknown character", "xyz", []int64{2, 1, 3}},
		{"empty string", "", []int64{2, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tok.Tokenize(tc.text)
			if err != nil {
				t.Fatalf("Tokenize error: %v", err)
			}
			if got.Length != len(tc.ids) {
				t.Errorf("Length = %d, want %d", got.Length, len(tc.ids))
			}
			if !reflect.DeepEqual(got.InputIDs[:len(tc.ids)], tc.ids) {
				t.Errorf("input_ids mismatch\n  want: %v\n  got:  %v", tc.ids, got.InputIDs)
			}
			for i := len(tc.ids); i < 8; i++ {
				if got.InputIDs[i] != 0 || got.AttentionMask[i] != 0 {
					t.Errorf("position %d not padding: id=%d mask=%d", i, got.InputIDs[i], got.AttentionMask[i])
				}
			}
		})
	}
}

func TestTokenizeFixedLength(t *testing.T) {
	for _, maxLen := range []int{2, 8, 128, 512} {
		tok := corpusTokenizer(t, maxLen)
		got, err := tok.Tokenize(strings.Repeat("hello ", 600))
		if err != nil {
			t.Fatalf("Tokenize error: %v", err)
		}
		if len(got.InputIDs) != maxLen || len(got.AttentionMask) != maxLen || len(got.TokenTypeIDs) != maxLen {
			t.Fatalf("maxLen %d: got lengths ids=%d mask=%d types=%d",
				maxLen, len(got.InputIDs), len(got.AttentionMask), len(got.TokenTypeIDs))
		}
		if got.Length != maxLen {
			t.Errorf("maxLen %d: Length = %d after truncation", maxLen, got.Length)
		}
		if got.InputIDs[0] != 2 || got.InputIDs[maxLen-1] != 3 {
			t.Errorf("maxLen %d: sequence must start with [CLS] and end with [SEP], got %v",
				maxLen, got.InputIDs[:2])
		}
	}
}

func TestTokenizeInvalidUTF8(t *testing.T) {
	tok := corpusTokenizer(t, 8)
	_, err := tok.Tokenize("hello \xff\xfe world")
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError, got %v", err)
	}
}

func TestNewTokenizerRejectsShortMaxLength(t *testing.T) {
	if _, err := NewTokenizer(BuildVocab(nil), 1); err == nil {
		t.Fatal("expected error for max length 1")
	}
	if _, err := NewTokenizer(nil, 8); err == nil {
		t.Fatal("expected error for nil vocab")
	}
}

func TestTokenizeBatchPadsToLongest(t *testing.T) {
	tok := corpusTokenizer(t, 16)

	result, err := tok.tokenizeBatch([]string{"hello world", "held"})
	if err != nil {
		t.Fatalf("tokenizeBatch error: %v", err)
	}
	if result.batchSize != 2 {
		t.Fatalf("expected batchSize=2, got %d", result.batchSize)
	}
	if result.seqLen != 6 {
		t.Fatalf("expected seqLen=6 (longest sequence), got %d", result.seqLen)
	}
	if int64(len(result.inputIDs)) != result.batchSize*result.seqLen {
		t.Fatalf("expected %d input_ids, got %d", result.batchSize*result.seqLen, len(result.inputIDs))
	}
	if result.inputIDs[0] != 2 || result.inputIDs[result.seqLen] != 2 {
		t.Error("each sequence should start with [CLS]")
	}
	// "hello world" has 4 real tokens; the remaining two are padding.
	if result.attentionMask[4] != 0 || result.attentionMask[5] != 0 {
		t.Errorf("expected padding mask for first sequence, got %v", result.attentionMask[:6])
	}
}

func TestTokenizeBatchEmpty(t *testing.T) {
	tok := corpusTokenizer(t, 8)
	result, err := tok.tokenizeBatch(nil)
	if err != nil {
		t.Fatalf("tokenizeBatch error: %v", err)
	}
	if result.batchSize != 0 {
		t.Errorf("expected batchSize=0 for empty input, got %d", result.batchSize)
	}
}

// Reference tokenizations generated with the bert-base-uncased tokenizer.
func TestTokenizeBertReference(t *testing.T) {
	skipIfNoVocab(t)
	v, err := LoadVocab(testVocabPath)
	if err != nil {
		t.Fatalf("failed to load vocab: %v", err)
	}
	tok, err := NewTokenizer(v, 512)
	if err != nil {
		t.Fatalf("NewTokenizer error: %v", err)
	}

	tests := []struct {
		name string
		text string
		ids  []int64
	}{
		{"simple", "hello world", []int64{101, 7592, 2088, 102}},
		{"accented characters stripped", "café résumé naïve", []int64{101, 7668, 13746, 15743, 102}},
		{"mixed punctuation brackets", "a]b[c", []int64{101, 1037, 1033, 1038, 1031, 1039, 102}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tok.Tokenize(tc.text)
			if err != nil {
				t.Fatalf("Tokenize error: %v", err)
			}
			if !reflect.DeepEqual(got.InputIDs[:len(tc.ids)], tc.ids) {
				t.Errorf("input_ids mismatch\n  want: %v\n  got:  %v", tc.ids, got.InputIDs[:len(tc.ids)])
			}
		})
	}
}

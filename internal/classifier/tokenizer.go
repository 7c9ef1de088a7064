package classifier

import "strings"

// Tokenizer maps text to fixed-length id sequences with a frozen vocabulary.
type Tokenizer struct {
	vocab  map[string]int
	unk    int
	pad    int
	maxLen int
}

func NewTokenizer(vocab map[string]int, padToken, unkToken string, maxLen int) *Tokenizer {
	pad, ok := vocab[padToken]
	if !ok {
		pad = 0
	}
	return &Tokenizer{vocab: vocab, unk: vocab[unkToken], pad: pad, maxLen: maxLen}
}

// Tokens lowercases and splits on whitespace.
func (t *Tokenizer) Tokens(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// IDs maps each token to its index, unseen tokens to the unknown id.
func (t *Tokenizer) IDs(text string) []int {
	tokens := t.Tokens(text)
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := t.vocab[tok]
		if !ok {
			id = t.unk
		}
		out[i] = id
	}
	return out
}

// Encode truncates to the first maxLen ids and left-pads shorter sequences.
func (t *Tokenizer) Encode(text string) []int {
	ids := t.IDs(text)
	if len(ids) > t.maxLen {
		ids = ids[:t.maxLen]
	}
	out := make([]int, t.maxLen)
	offset := t.maxLen - len(ids)
	for i := 0; i < offset; i++ {
		out[i] = t.pad
	}
	copy(out[offset:], ids)
	return out
}

func (t *Tokenizer) Pad() int     { return t.pad }
func (t *Tokenizer) Unknown() int { return t.unk }

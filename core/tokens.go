package core

import (
	. "github.com/stevegt/goadapt"
	"github.com/tiktoken-go/tokenizer"
)

// Tokenizer counts tokens.  DeepSeek does not publish a Go tokenizer,
// so cl100k_base is used as an estimate.
type Tokenizer struct {
	codec tokenizer.Codec
}

// NewTokenizer initializes the tokenizer.
func NewTokenizer() (t *Tokenizer, err error) {
	defer Return(&err)
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	Ck(err)
	t = &Tokenizer{codec: codec}
	return
}

// Count returns the number of tokens in a string.
func (t *Tokenizer) Count(text string) (count int, err error) {
	defer Return(&err)
	ids, _, err := t.codec.Encode(text)
	Ck(err)
	count = len(ids)
	return
}

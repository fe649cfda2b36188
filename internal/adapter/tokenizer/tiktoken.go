// Package tokenizer counts tokens the way the hosted model's tokenizer does.
package tokenizer

import (
	"strings"
	"sync"
	"unicode"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used when the model identifier is not recognized.
const DefaultEncoding = tokenizer.Cl100kBase

// Counter counts tokens for a single model.
type Counter struct {
	model    string
	codec    tokenizer.Codec
	fallback bool
}

var (
	codecMu sync.Mutex
	codecs  = make(map[string]*Counter)
)

// New returns a counter bound to modelID. Unknown identifiers fall back to
// the cl100k_base encoding instead of failing. Counters are shared per model.
func New(modelID string) *Counter {
	key := strings.ToLower(strings.TrimSpace(modelID))

	codecMu.Lock()
	defer codecMu.Unlock()

	if c, ok := codecs[key]; ok {
		return c
	}

	c := &Counter{model: key}
	codec, err := tokenizer.ForModel(tokenizer.Model(key))
	if err != nil {
		c.fallback = true
		codec, err = tokenizer.Get(DefaultEncoding)
		if err != nil {
			// Only the word estimate is left.
			codec = nil
		}
	}
	c.codec = codec
	codecs[key] = c
	return c
}

// Count returns the number of tokens in text. Empty text is 0 tokens.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.codec == nil {
		return estimate(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return estimate(text)
	}
	return len(ids)
}

func (c *Counter) Model() string {
	return c.model
}

// Encoding returns the name of the encoding in use, or "estimate" when no
// codec could be loaded.
func (c *Counter) Encoding() string {
	if c.codec == nil {
		return "estimate"
	}
	return c.codec.GetName()
}

// FellBack reports whether the model was unknown and the default encoding
// is in use.
func (c *Counter) FellBack() bool {
	return c.fallback
}

// estimate approximates a token count from word boundaries: roughly 1.3
// tokens per word, never less than one token for non-empty text.
func estimate(text string) int {
	words := splitWords(text)
	n := int(float64(len(words)) * 1.3)
	if n == 0 {
		n = (len(text) + 3) / 4
	}
	if n == 0 {
		n = 1
	}
	return n
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for prompt budgeting. Encoding lookup is
// lazy; when no encoding is available (unknown model, no cached BPE data) it
// falls back to a bytes/4 estimate rather than failing the call.
type Counter struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter creates a counter for the given model name.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// Count returns the estimated token count of text.
func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		}
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

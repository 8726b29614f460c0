// Package tokenbudget counts and trims prompt text against a model's
// context window using tiktoken, so the AI-summary pipeline can
// degrade gracefully (drop the least essential prompt sections) instead of
// sending an oversized request that the provider would reject.
package tokenbudget

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// claudeContextWindows maps Claude model name prefixes to their context
// window size in tokens. Anthropic models aren't OpenAI's byte-pair
// vocabulary, but cl100k_base gives a close enough estimate for budgeting
// purposes — the same approximation the original tokenizer falls back to
// for any model it doesn't recognise.
var claudeContextWindows = map[string]int{
	"claude-3-5-sonnet": 200000,
	"claude-3-5-haiku":  200000,
	"claude-3-opus":     200000,
	"claude-3-sonnet":   200000,
	"claude-3-haiku":    200000,
}

const defaultEncoding = "cl100k_base"
const defaultContextWindow = 200000

// Counter counts tokens for a given model using a cached tiktoken encoder.
type Counter struct {
	model       string
	contextSize int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// New creates a Counter for model, picking its context window by prefix
// match and defaulting to Claude's common 200k window otherwise.
func New(model string) *Counter {
	size := defaultContextWindow
	for prefix, window := range claudeContextWindows {
		if strings.HasPrefix(model, prefix) {
			size = window
			break
		}
	}
	return &Counter{model: model, contextSize: size}
}

func (c *Counter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			c.initErr = fmt.Errorf("tokenbudget: init encoding: %w", err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count returns the token count of text, or 0 if the encoder failed to
// initialise (callers should treat that as "can't verify, proceed anyway"
// rather than block a request on a tokenizer outage).
func (c *Counter) Count(text string) int {
	if err := c.init(); err != nil {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// ContextWindow returns the model's token budget.
func (c *Counter) ContextWindow() int {
	return c.contextSize
}

// FitsBudget reports whether text, combined with reservedOutput tokens for
// the model's reply, fits within the model's context window.
func (c *Counter) FitsBudget(text string, reservedOutput int) bool {
	return c.Count(text)+reservedOutput <= c.contextSize
}

// TruncateToFit trims section (a single appended prompt section, such as an
// insights block) so that prefix+section+reservedOutput fits the model's
// context window, dropping it entirely if even an empty section wouldn't
// help. Used to shed the least essential part of a prompt rather than fail
// the whole request.
func (c *Counter) TruncateToFit(prefix, section string, reservedOutput int) string {
	if section == "" {
		return section
	}
	if c.FitsBudget(prefix+section, reservedOutput) {
		return section
	}

	budget := c.contextSize - reservedOutput - c.Count(prefix)
	if budget <= 0 {
		return ""
	}
	if err := c.init(); err != nil {
		return section
	}
	tokens := c.enc.Encode(section, nil, nil)
	if len(tokens) <= budget {
		return section
	}
	return c.enc.Decode(tokens[:budget])
}

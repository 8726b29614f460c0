package tokenbudget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_PicksClaudeContextWindow(t *testing.T) {
	c := New("claude-3-5-sonnet-20241022")
	assert.Equal(t, 200000, c.ContextWindow())
}

func TestNew_DefaultsUnknownModelToDefaultWindow(t *testing.T) {
	c := New("some-future-model")
	assert.Equal(t, defaultContextWindow, c.ContextWindow())
}

func TestCount_NonEmptyTextHasPositiveCount(t *testing.T) {
	c := New("claude-3-5-sonnet")
	assert.Positive(t, c.Count("hello weather"))
}

func TestFitsBudget_SmallTextFits(t *testing.T) {
	c := New("claude-3-5-sonnet")
	assert.True(t, c.FitsBudget("a short prompt", 300))
}

func TestTruncateToFit_ReturnsUnchangedWhenWithinBudget(t *testing.T) {
	c := New("claude-3-5-sonnet")
	section := "Wind gusts: 40.0 km/h"
	assert.Equal(t, section, c.TruncateToFit("prefix text", section, 300))
}

func TestTruncateToFit_ShrinksOversizedSection(t *testing.T) {
	c := New("claude-3-5-sonnet")
	huge := strings.Repeat("weather insight data ", 5000)
	out := c.TruncateToFit("prefix", huge, c.ContextWindow()-10)
	assert.Less(t, c.Count(out), c.Count(huge))
}

func TestTruncateToFit_EmptySectionStaysEmpty(t *testing.T) {
	c := New("claude-3-5-sonnet")
	assert.Equal(t, "", c.TruncateToFit("prefix", "", 300))
}

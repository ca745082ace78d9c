package insights

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

const fullResponse = `Here is my analysis.

**PATTERN_RECOGNITION:**
Historical Pattern: weekend_warrior (2 times)
Current Evidence: You said "I got bored after the login page worked"
Pattern Evolution: this is the third project that stalled right after authentication.

**COACHING:**
[What You Said: "I kept adding features nobody asked for" shows scope drift because each addition delayed the first release.]


**QUESTIONS:**
Your Statement: "it was just a fun experiment"
Pattern-Aware Question: You described this as an experiment, what would a finished experiment have looked like?

**STRATEGIES:**
Based On Your History: you mentioned "no clear finish line" twice.
1. Write the finish line in the README before the first commit.
2. Specifically timebox the next project to two weekends.
`

func TestParse_RoundTripAllMarkers(t *testing.T) {
	parsed, rejected := Parse(fullResponse)

	require.Len(t, parsed, 4)
	assert.Empty(t, rejected)
	assert.Equal(t, models.AIInsightPatternRecognition, parsed[0].Type)
	assert.Equal(t, models.AIInsightCoaching, parsed[1].Type)
	assert.Equal(t, models.AIInsightQuestions, parsed[2].Type)
	assert.Equal(t, models.AIInsightStrategies, parsed[3].Type)

	for _, p := range parsed {
		assert.NotContains(t, p.Content, "**", "content must not leak another marker")
		assert.Greater(t, p.Confidence, MinConfidence)
	}
}

func TestExtractSections_CleansContent(t *testing.T) {
	sections := ExtractSections(fullResponse)
	require.Len(t, sections, 4)

	coaching := sections[1]
	assert.True(t, coaching.Found)
	assert.False(t, strings.HasPrefix(coaching.Content, "["))
	assert.False(t, strings.HasSuffix(coaching.Content, "]"))
	assert.NotContains(t, coaching.Content, "\n\n")
	assert.Equal(t, "Your Statement: \"it was just a fun experiment\"\nPattern-Aware Question: You described this as an experiment, what would a finished experiment have looked like?", sections[2].Content)
}

func TestExtractSections_OutOfOrderAndMissingMarkers(t *testing.T) {
	response := "**STRATEGIES:** You said \"I never shipped\" so ship a landing page first.\n" +
		"**PATTERN_RECOGNITION:** You mentioned \"weekend hacking\" in three projects now."

	sections := ExtractSections(response)

	require.Len(t, sections, 4)
	assert.True(t, sections[0].Found)
	assert.Equal(t, "You mentioned \"weekend hacking\" in three projects now.", sections[0].Content)
	assert.False(t, sections[1].Found)
	assert.False(t, sections[2].Found)
	assert.True(t, sections[3].Found)
	assert.Equal(t, "You said \"I never shipped\" so ship a landing page first.", sections[3].Content)
}

func TestExtractSections_FirstOccurrenceWins(t *testing.T) {
	response := "**COACHING:** You said \"first\" and that matters a lot here.\n**COACHING:** second copy"

	sections := ExtractSections(response)

	assert.Equal(t, "You said \"first\" and that matters a lot here.\n**COACHING:** second copy", sections[1].Content)
}

func TestParse_NoMarkers(t *testing.T) {
	parsed, rejected := Parse("I could not find anything specific to say.")
	assert.Empty(t, parsed)
	assert.Empty(t, rejected)
}

func TestParse_AllSectionsRejected(t *testing.T) {
	response := "**COACHING:** Consider breaking down the scope of future projects.\n" +
		"**STRATEGIES:** Start small and iterate on the MVP."

	parsed, rejected := Parse(response)

	assert.Empty(t, parsed)
	require.Len(t, rejected, 2)
	assert.Equal(t, ReasonGenericPhrase, rejected[0].Reason)
	assert.Equal(t, ReasonGenericPhrase, rejected[1].Reason)
}

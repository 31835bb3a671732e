package citation

import (
	"regexp"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_InlineDefinition(t *testing.T) {
	got := Extract("See [1] for details. [1] Source X.")

	assert.Equal(t, "See [^1] for details.", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "1", Label: "Source X", Position: 4}}, got.Citations)
}

func TestExtract_NoMarkers(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"## Heading\n\n- item   \n- [link](https://example.org)\n",
		"Footnote already resolved [^1].",
		"Reference def\n\n[1]: https://example.org",
	}

	for _, in := range inputs {
		got := Extract(in)
		assert.Equal(t, in, got.Content)
		assert.NotNil(t, got.Citations)
		assert.Empty(t, got.Citations)
	}
}

func TestExtract_FirstOccurrenceOrder(t *testing.T) {
	text := "Call [2] first, then visit [1]. Bring ID [2].\n\n" +
		"Sources:\n" +
		"- [1] Food Bank https://foodbank.example.org/hours.\n" +
		"- [2] Resource Center\n"

	got := Extract(text)

	assert.Equal(t, "Call [^2] first, then visit [^1]. Bring ID [^2].\n\nSources:\n", got.Content)
	require.Len(t, got.Citations, 2)
	assert.Equal(t, domain.Citation{Marker: "2", Label: "Resource Center", Position: 5}, got.Citations[0])
	assert.Equal(t, domain.Citation{
		Marker:   "1",
		Label:    "Food Bank https://foodbank.example.org/hours",
		URL:      "https://foodbank.example.org/hours",
		Position: 27,
	}, got.Citations[1])
}

func TestExtract_ConsecutiveInlineDefinitions(t *testing.T) {
	got := Extract("Eat [1] and sleep [2]. [1] Source X. [2] Source Y.")

	assert.Equal(t, "Eat [^1] and sleep [^2].", got.Content)
	assert.Equal(t, []domain.Citation{
		{Marker: "1", Label: "Source X", Position: 4},
		{Marker: "2", Label: "Source Y", Position: 18},
	}, got.Citations)
}

func TestExtract_ReferencesWithoutDefinitions(t *testing.T) {
	got := Extract("Apply online [3]. Then call [3].")

	assert.Equal(t, "Apply online [^3]. Then call [^3].", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "3", Position: 13}}, got.Citations)
}

func TestExtract_SkipsLinksAndPlaceholders(t *testing.T) {
	text := "A [1](https://a.example) link, a [^2] note and a real [3]."

	got := Extract(text)

	assert.Equal(t, "A [1](https://a.example) link, a [^2] note and a real [^3].", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "3", Position: 54}}, got.Citations)
}

func TestExtract_Idempotent(t *testing.T) {
	inputs := []string{
		"See [1] for details. [1] Source X.",
		"Call [2] first.\n\n1. [2] Resource Center\n",
		"Nothing here.",
	}

	for _, in := range inputs {
		first := Extract(in)
		second := Extract(first.Content)

		assert.Equal(t, first.Content, second.Content)
		assert.Empty(t, second.Citations)
	}
}

func TestExtract_Restartable(t *testing.T) {
	text := "Visit [1] today. [1] Center."
	assert.Equal(t, Extract(text), Extract(text))
}

func TestExtract_WithPattern(t *testing.T) {
	re := regexp.MustCompile(`\{\{cite:(\w+)\}\}`)

	got := Extract("Housing help {{cite:hud}} exists.", WithPattern(re))

	assert.Equal(t, "Housing help [^hud] exists.", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "hud", Position: 13}}, got.Citations)
}

func TestExtract_LeavesCodeAlone(t *testing.T) {
	inline := "Use `items[0]` in code."
	got := Extract(inline)
	assert.Equal(t, inline, got.Content)
	assert.Empty(t, got.Citations)

	got = Extract("Index with ``a[1]`` and cite [1].\n\n[1] Docs")
	assert.Equal(t, "Index with ``a[1]`` and cite [^1].", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "1", Label: "Docs", Position: 29}}, got.Citations)

	fenced := "Run this:\n\n```go\nx := list[1]\n[2] stays\n```\n\nThen call [1].\n\n[1] Help desk\n"
	got = Extract(fenced)
	assert.Equal(t, "Run this:\n\n```go\nx := list[1]\n[2] stays\n```\n\nThen call [^1].\n", got.Content)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, domain.Citation{Marker: "1", Label: "Help desk", Position: 55}, got.Citations[0])
}

func TestExtract_ProseOpeningWithMarker(t *testing.T) {
	got := Extract("[1] is the first office to call. Then call [2].\n\n[2] Source B.")

	assert.Equal(t, "[^1] is the first office to call. Then call [^2].", got.Content)
	assert.Equal(t, []domain.Citation{
		{Marker: "1", Position: 0},
		{Marker: "2", Label: "Source B", Position: 43},
	}, got.Citations)
}

func TestExtract_TrailingSourcesBlock(t *testing.T) {
	got := Extract("Housing and food help are nearby.\n\n[1] Housing Authority. [2] Food Bank.\n[3] Clinic\n")

	assert.Equal(t, "Housing and food help are nearby.\n", got.Content)
	assert.Equal(t, []domain.Citation{
		{Marker: "1", Label: "Housing Authority", Position: 35},
		{Marker: "2", Label: "Food Bank", Position: 58},
		{Marker: "3", Label: "Clinic", Position: 73},
	}, got.Citations)

	only := Extract("[1] Food Bank")
	assert.Equal(t, "[^1] Food Bank", only.Content)
	assert.Equal(t, []domain.Citation{{Marker: "1", Position: 0}}, only.Citations)
}

func TestExtract_KeepsCRLF(t *testing.T) {
	got := Extract("See [1].\r\n[1] A\r\n")
	assert.Equal(t, "See [^1].\r\n", got.Content)
	assert.Equal(t, []domain.Citation{{Marker: "1", Label: "A", Position: 4}}, got.Citations)

	got = Extract("Call [1] today.\r\nBring ID.\r\n\r\n[1] Clinic")
	assert.Equal(t, "Call [^1] today.\r\nBring ID.", got.Content)
}

package feedback

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"
)

//go:embed prompt.md
var promptTemplate string

//go:embed repair.md
var repairTemplate string

const (
	defaultMaxTranscriptRunes = 24000
	defaultPreserveTurns      = 4
	minPreserveTurns          = 2
)

// Prompt is a built model request.
type Prompt struct {
	Text    string
	Turns   int
	Omitted int
}

// PromptBuilder renders normalized turns and the rubric into a model request.
type PromptBuilder struct {
	rubric        Rubric
	maxRunes      int
	preserveTurns int
}

// NewPromptBuilder returns a builder. Non-positive limits fall back to defaults;
// preserveTurns is never lower than a single exchange.
func NewPromptBuilder(rubric Rubric, maxTranscriptRunes, preserveTurns int) *PromptBuilder {
	if maxTranscriptRunes <= 0 {
		maxTranscriptRunes = defaultMaxTranscriptRunes
	}
	if preserveTurns <= 0 {
		preserveTurns = defaultPreserveTurns
	}
	if preserveTurns < minPreserveTurns {
		preserveTurns = minPreserveTurns
	}

	return &PromptBuilder{
		rubric:        rubric,
		maxRunes:      maxTranscriptRunes,
		preserveTurns: preserveTurns,
	}
}

// Build renders the prompt for the given turns.
func (b *PromptBuilder) Build(turns []Turn) Prompt {
	transcript, omitted := b.renderTranscript(turns)

	text := strings.NewReplacer(
		"{{RUBRIC_VERSION}}", b.rubric.Version,
		"{{RUBRIC}}", b.renderRubric(),
		"{{SCHEMA}}", ResponseSchema(),
		"{{TRANSCRIPT}}", transcript,
	).Replace(promptTemplate)

	return Prompt{
		Text:    strings.TrimSpace(text),
		Turns:   len(turns) - omitted,
		Omitted: omitted,
	}
}

// BuildRepair asks the model to fix its previous output.
func (b *PromptBuilder) BuildRepair(original Prompt, previous string, violations []string) Prompt {
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, "- "+v)
	}

	previous = strings.TrimSpace(previous)
	if previous == "" {
		previous = "(empty response)"
	}

	text := strings.NewReplacer(
		"{{PROMPT}}", original.Text,
		"{{PREVIOUS}}", previous,
		"{{VIOLATIONS}}", strings.Join(lines, "\n"),
	).Replace(repairTemplate)

	return Prompt{
		Text:    strings.TrimSpace(text),
		Turns:   original.Turns,
		Omitted: original.Omitted,
	}
}

func (b *PromptBuilder) renderRubric() string {
	lines := make([]string, 0, len(b.rubric.Categories))
	for _, c := range b.rubric.Categories {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Name, c.Guidance))
	}
	return strings.Join(lines, "\n")
}

// renderTranscript keeps the newest turns that fit into the budget. The last
// preserveTurns turns are always kept, whatever their size.
func (b *PromptBuilder) renderTranscript(turns []Turn) (string, int) {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = formatTurn(t)
	}

	keepFrom := len(lines) - b.preserveTurns
	if keepFrom < 0 {
		keepFrom = 0
	}

	used := 0
	for _, l := range lines[keepFrom:] {
		used += utf8.RuneCountInString(l) + 1
	}

	for keepFrom > 0 {
		size := utf8.RuneCountInString(lines[keepFrom-1]) + 1
		if used+size > b.maxRunes {
			break
		}
		used += size
		keepFrom--
	}

	kept := lines[keepFrom:]
	if keepFrom > 0 {
		kept = append([]string{fmt.Sprintf("[%d earlier turns omitted]", keepFrom)}, kept...)
	}

	return strings.Join(kept, "\n"), keepFrom
}

func formatTurn(t Turn) string {
	return fmt.Sprintf("- %s: %s", t.Speaker, t.Text)
}

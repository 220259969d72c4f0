package feedback

import (
	"strings"
	"unicode"
)

// RubricVersion changes whenever category names or guidance change.
const RubricVersion = "2025-01"

const (
	CategoryCommunication   = "Communication Skills"
	CategoryTechnical       = "Technical Knowledge"
	CategoryProblemSolving  = "Problem Solving"
	CategoryCulturalFit     = "Cultural Fit"
	CategoryConfidenceClear = "Confidence & Clarity"
)

// Criterion is a single rubric category with its scoring guidance.
type Criterion struct {
	Name     string
	Guidance string
}

// Rubric is the fixed evaluation rubric.
type Rubric struct {
	Version    string
	Categories []Criterion
}

// DefaultRubric is the process-wide evaluation rubric.
var DefaultRubric = Rubric{
	Version: RubricVersion,
	Categories: []Criterion{
		{Name: CategoryCommunication, Guidance: "clarity, articulation and structure of answers"},
		{Name: CategoryTechnical, Guidance: "understanding of the key concepts required for the role"},
		{Name: CategoryProblemSolving, Guidance: "ability to analyse a problem and propose workable solutions"},
		{Name: CategoryCulturalFit, Guidance: "alignment with team values and the expectations of the role"},
		{Name: CategoryConfidenceClear, Guidance: "confidence, engagement and clarity while responding"},
	},
}

// Names returns category names in rubric order.
func (r Rubric) Names() []string {
	names := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return names
}

// categoryAliases maps alternative spellings models tend to produce.
var categoryAliases = map[string]string{
	"culturalrolefit":      CategoryCulturalFit,
	"culturefit":           CategoryCulturalFit,
	"communication":        CategoryCommunication,
	"technicalskills":      CategoryTechnical,
	"confidenceandclarity": CategoryConfidenceClear,
}

// Canonical resolves a model supplied category name to the rubric name.
func (r Rubric) Canonical(name string) (string, bool) {
	key := categoryKey(name)
	if key == "" {
		return "", false
	}
	for _, c := range r.Categories {
		if categoryKey(c.Name) == key {
			return c.Name, true
		}
	}
	if alias, ok := categoryAliases[key]; ok {
		for _, c := range r.Categories {
			if c.Name == alias {
				return alias, true
			}
		}
	}
	return "", false
}

func categoryKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

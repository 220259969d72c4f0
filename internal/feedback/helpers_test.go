package feedback

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type scripted struct {
	out string
	err error
}

type scriptedGenerator struct {
	mu        sync.Mutex
	responses []scripted
	prompts   []string
}

func newScriptedGenerator(responses ...scripted) *scriptedGenerator {
	return &scriptedGenerator{responses: responses}
}

// GenerateContent replays the scripted responses; the last one repeats forever.
func (s *scriptedGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(s.responses) == 0 {
		return "", nil
	}
	res := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return res.out, res.err
}

func (s *scriptedGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func responseJSON(scores map[string]int) string {
	categories := make([]map[string]any, 0, len(scores))
	for _, name := range DefaultRubric.Names() {
		score, ok := scores[name]
		if !ok {
			continue
		}
		categories = append(categories, map[string]any{
			"name":    name,
			"score":   score,
			"comment": "comment for " + name,
		})
	}

	data, _ := json.Marshal(map[string]any{
		"categoryScores":      categories,
		"strengths":           []string{"explains trade-offs"},
		"areasForImprovement": []string{"consider edge cases"},
		"finalAssessment":     "Solid answers overall.",
	})
	return string(data)
}

func uniformResponse(score int) string {
	scores := make(map[string]int)
	for _, name := range DefaultRubric.Names() {
		scores[name] = score
	}
	return responseJSON(scores)
}

func noWait(context.Context, time.Duration) error { return nil }

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRepairs: 2, MaxGenerationRetries: 2}
}

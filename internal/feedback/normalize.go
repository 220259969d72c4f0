package feedback

import (
	"fmt"
	"sort"
	"strings"
)

var roleAliases = map[string]Role{
	"interviewer": RoleInterviewer,
	"assistant":   RoleInterviewer,
	"agent":       RoleInterviewer,
	"candidate":   RoleCandidate,
	"user":        RoleCandidate,
	"system":      RoleSystem,
}

// ParseRole maps a raw speaker role to a Role.
func ParseRole(raw string) (Role, error) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown speaker role %q", raw)
	}
	return role, nil
}

// Normalize drops system turns and empty content and returns the turns in
// sequence order. It fails with an input error when nothing from the candidate
// is left to evaluate.
func Normalize(turns []TranscriptTurn) ([]Turn, error) {
	ordered := make([]TranscriptTurn, len(turns))
	copy(ordered, turns)

	sequenced := false
	for _, t := range ordered {
		if t.Seq != 0 {
			sequenced = true
			break
		}
	}
	if sequenced {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })
	}

	out := make([]Turn, 0, len(ordered))
	candidates := 0
	for i, t := range ordered {
		role, err := ParseRole(t.Role)
		if err != nil {
			return nil, inputError(fmt.Sprintf("turn %d: %v", i, err))
		}
		if role == RoleSystem {
			continue
		}

		text := strings.Join(strings.Fields(t.Content), " ")
		if text == "" {
			continue
		}

		if role == RoleCandidate {
			candidates++
		}
		out = append(out, Turn{Speaker: role, Text: text})
	}

	if len(out) == 0 {
		return nil, inputError("transcript is empty")
	}
	if candidates == 0 {
		return nil, inputError("transcript has no candidate turns")
	}

	return out, nil
}

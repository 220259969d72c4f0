package feedback

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// modelResponse describes the JSON object the model must return.
type modelResponse struct {
	CategoryScores      []modelCategory `json:"categoryScores" jsonschema:"minItems=5,maxItems=5"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment" jsonschema:"minLength=1"`
}

type modelCategory struct {
	Name    string `json:"name" jsonschema:"enum=Communication Skills,enum=Technical Knowledge,enum=Problem Solving,enum=Cultural Fit,enum=Confidence & Clarity"`
	Score   int    `json:"score" jsonschema:"minimum=0,maximum=100"`
	Comment string `json:"comment"`
}

var responseSchema = sync.OnceValue(func() string {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	schema := r.Reflect(&modelResponse{})
	schema.Version = ""
	schema.Title = "Interview feedback"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// Reflecting a static struct cannot fail at runtime.
		panic(err)
	}
	return string(data)
})

// ResponseSchema returns the JSON schema the model response must satisfy.
func ResponseSchema() string {
	return responseSchema()
}

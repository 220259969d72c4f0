package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestFields(t *testing.T) {
	tests := []struct {
		name                        string
		interview, user, feedbackID string
		want                        map[string]string
	}{
		{
			name:      "new submission",
			interview: "int-42",
			user:      " user-7 ",
			want:      map[string]string{FieldInterview: "int-42", FieldUser: "user-7"},
		},
		{
			name:       "regeneration names the record",
			interview:  "int-42",
			user:       "user-7",
			feedbackID: "fb-3",
			want:       map[string]string{FieldInterview: "int-42", FieldUser: "user-7", FieldFeedback: "fb-3"},
		},
		{
			name:      "missing owner is left out rather than logged blank",
			interview: "   ",
			user:      "user-7",
			want:      map[string]string{FieldUser: "user-7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := RequestFields(tt.interview, tt.user, tt.feedbackID)
			if len(fields) != len(tt.want) {
				t.Fatalf("expected %d fields, got %+v", len(tt.want), fields)
			}
			for _, f := range fields {
				if tt.want[f.Key] != f.String {
					t.Fatalf("field %s: expected %q, got %q", f.Key, tt.want[f.Key], f.String)
				}
			}
		})
	}
}

func TestWithFieldsTagsSubmissionLogs(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	log := WithFields(zap.New(core), RequestFields("int-42", "user-7", "")...)
	log.Info("feedback stored", zap.String(FieldFeedback, "fb-3"))

	entries := observed.FilterMessage("feedback stored").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	for key, want := range map[string]string{FieldInterview: "int-42", FieldUser: "user-7", FieldFeedback: "fb-3"} {
		if ctx[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, ctx[key])
		}
	}

	// A nil logger falls back to a no-op one.
	WithFields(nil, RequestFields("int-42", "user-7", "")...).Info("dropped")
}

func TestModelClientFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	WithCommonFields(zap.New(core), " openai ", "gpt-4o-mini").Debug("generate content request")
	WithCommonFields(zap.New(core), "gemini", "").Debug("generate content request")

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first[FieldProvider] != "openai" || first[FieldModel] != "gpt-4o-mini" {
		t.Fatalf("unexpected model client fields: %v", first)
	}

	second := entries[1].ContextMap()
	if _, ok := second[FieldModel]; ok {
		t.Fatalf("empty model must not be logged: %v", second)
	}
	if second[FieldProvider] != "gemini" {
		t.Fatalf("expected provider gemini, got %v", second[FieldProvider])
	}

	if got := CommonFields("", ""); len(got) != 0 {
		t.Fatalf("expected no fields, got %+v", got)
	}
}

package transcriptfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/interview-feedback/internal/feedback"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantTurns []feedback.TranscriptTurn
		wantID    string
		wantErr   bool
	}{
		{
			name:  "json list",
			input: `[{"role": "interviewer", "content": "Hi"}, {"role": "candidate", "content": "Hello"}]`,
			wantTurns: []feedback.TranscriptTurn{
				{Role: "interviewer", Content: "Hi"},
				{Role: "candidate", Content: "Hello"},
			},
		},
		{
			name: "yaml envelope",
			input: `
interviewId: int-7
userId: user-7
transcript:
  - role: candidate
    content: I would use a heap
    seq: 2
  - role: interviewer
    content: How do you find the top k?
    seq: 1
`,
			wantTurns: []feedback.TranscriptTurn{
				{Role: "candidate", Content: "I would use a heap", Seq: 2},
				{Role: "interviewer", Content: "How do you find the top k?", Seq: 1},
			},
			wantID: "int-7",
		},
		{
			name:    "object without transcript",
			input:   `{"interviewId": "int-1"}`,
			wantErr: true,
		},
		{
			name:    "scalar",
			input:   `hello`,
			wantErr: true,
		},
		{
			name:    "empty",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", f)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if f.InterviewID != tt.wantID {
				t.Fatalf("expected interview id %q, got %q", tt.wantID, f.InterviewID)
			}
			if len(f.Transcript) != len(tt.wantTurns) {
				t.Fatalf("expected %d turns, got %d", len(tt.wantTurns), len(f.Transcript))
			}
			for i := range tt.wantTurns {
				if f.Transcript[i] != tt.wantTurns[i] {
					t.Fatalf("turn %d: expected %+v, got %+v", i, tt.wantTurns[i], f.Transcript[i])
				}
			}
		})
	}
}

func TestLoadAndRequestOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	content := `{"interviewId": "int-1", "userId": "user-1", "transcript": [{"role": "candidate", "content": "hi"}]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := f.Request("", "user-override", "fb-9")
	if req.InterviewID != "int-1" || req.UserID != "user-override" || req.FeedbackID != "fb-9" {
		t.Fatalf("unexpected request ids: %+v", req)
	}
	if len(req.Transcript) != 1 {
		t.Fatalf("expected transcript to be carried over")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

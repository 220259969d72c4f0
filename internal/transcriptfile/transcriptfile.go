// Package transcriptfile reads transcripts saved as JSON or YAML.
package transcriptfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/spigell/interview-feedback/internal/feedback"
)

// File is the optional envelope form of a transcript file.
type File struct {
	InterviewID string                    `mapstructure:"interviewId"`
	UserID      string                    `mapstructure:"userId"`
	FeedbackID  string                    `mapstructure:"feedbackId"`
	Transcript  []feedback.TranscriptTurn `mapstructure:"transcript"`
}

// Load reads path and returns its contents. A file may hold either a bare list
// of turns or an object with a transcript key and optional ids.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes JSON or YAML content. JSON is valid YAML, so one decoder serves both.
func Parse(data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var f File
	switch v := raw.(type) {
	case []any:
		if err := decode(v, &f.Transcript); err != nil {
			return nil, err
		}
	case map[string]any:
		if _, ok := v["transcript"]; !ok {
			return nil, errors.New("transcript key is missing")
		}
		if err := decode(v, &f); err != nil {
			return nil, err
		}
	case nil:
		return nil, errors.New("file is empty")
	default:
		return nil, fmt.Errorf("unexpected top-level %T, want a list of turns or an object", raw)
	}

	return &f, nil
}

// Request builds a pipeline request, letting non-empty arguments override ids
// found in the file.
func (f *File) Request(interviewID, userID, feedbackID string) feedback.Request {
	req := feedback.Request{
		InterviewID: f.InterviewID,
		UserID:      f.UserID,
		FeedbackID:  f.FeedbackID,
		Transcript:  f.Transcript,
	}
	if interviewID != "" {
		req.InterviewID = interviewID
	}
	if userID != "" {
		req.UserID = userID
	}
	if feedbackID != "" {
		req.FeedbackID = feedbackID
	}
	return req
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

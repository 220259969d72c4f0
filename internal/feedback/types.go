// Package feedback turns an interview transcript into a scored feedback record.
package feedback

import "time"

// Role identifies who spoke a transcript turn.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
	RoleSystem      Role = "system"
)

// TranscriptTurn is a single raw turn as delivered by the transcription layer.
type TranscriptTurn struct {
	Role    string `json:"role" yaml:"role" mapstructure:"role"`
	Content string `json:"content" yaml:"content" mapstructure:"content"`
	// Seq is the optional sequence order. Zero means "use input order".
	Seq int `json:"seq,omitempty" yaml:"seq,omitempty" mapstructure:"seq"`
}

// Turn is a normalized, evaluator-ready transcript turn.
type Turn struct {
	Speaker Role
	Text    string
}

// CategoryScore is the score and comment for one rubric category.
type CategoryScore struct {
	Name    string `json:"name" bson:"name" validate:"required"`
	Score   int    `json:"score" bson:"score" validate:"min=0,max=100"`
	Comment string `json:"comment" bson:"comment"`
}

// Payload is validated model output without identity or timestamps.
type Payload struct {
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores" validate:"len=5,dive"`
	Strengths           []string        `json:"strengths" validate:"dive,required"`
	AreasForImprovement []string        `json:"areasForImprovement" validate:"dive,required"`
	FinalAssessment     string          `json:"finalAssessment" validate:"required"`
}

// Record is a persisted feedback record.
type Record struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interviewId"`
	UserID              string          `json:"userId"`
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Apply copies every mutable field of the payload onto the record.
func (r *Record) Apply(p *Payload) {
	r.TotalScore = p.TotalScore
	r.CategoryScores = append([]CategoryScore(nil), p.CategoryScores...)
	r.Strengths = append([]string(nil), p.Strengths...)
	r.AreasForImprovement = append([]string(nil), p.AreasForImprovement...)
	r.FinalAssessment = p.FinalAssessment
}

// Request is a single feedback submission.
type Request struct {
	InterviewID string           `json:"interviewId" binding:"required"`
	UserID      string           `json:"userId" binding:"required"`
	Transcript  []TranscriptTurn `json:"transcript"`
	FeedbackID  string           `json:"feedbackId,omitempty"`
}

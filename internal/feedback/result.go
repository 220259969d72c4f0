package feedback

import "net/http"

// Result is the outcome of a pipeline run: either a feedback id or a classified error.
type Result struct {
	FeedbackID string
	Err        *Error
}

func Ok(feedbackID string) Result {
	return Result{FeedbackID: feedbackID}
}

func Fail(err *Error) Result {
	return Result{Err: err}
}

func (r Result) IsOk() bool { return r.Err == nil }

// Response is the boundary contract returned to callers.
type Response struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedbackId,omitempty"`
	Error      string `json:"error,omitempty"`
}

var kindMessages = map[Kind]string{
	KindGeneration: "Failed to generate feedback",
	KindValidation: "Failed to generate valid feedback",
	KindPersist:    "Failed to save feedback",
}

const defaultFailureMessage = "Failed to create feedback"

// Project maps a result to the boundary response. Only input errors expose
// their reason; every other kind gets a fixed message.
func Project(r Result) Response {
	if r.IsOk() {
		return Response{Success: true, FeedbackID: r.FeedbackID}
	}

	msg := defaultFailureMessage
	switch {
	case r.Err.Kind == KindInput && r.Err.Msg != "":
		msg = "Invalid transcript: " + r.Err.Msg
	case kindMessages[r.Err.Kind] != "":
		msg = kindMessages[r.Err.Kind]
	}

	return Response{Success: false, Error: msg}
}

// StatusCode returns the HTTP status for a result.
func StatusCode(r Result) int {
	switch {
	case r.IsOk():
		return http.StatusOK
	case r.Err.Kind == KindInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

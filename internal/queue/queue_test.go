package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/interview-feedback/internal/feedback"
	"github.com/spigell/interview-feedback/internal/store/memory"
)

type recordingAck struct {
	acks    int
	nacks   int
	requeue bool
}

func (r *recordingAck) Ack(bool) error {
	r.acks++
	return nil
}

func (r *recordingAck) Nack(_ bool, requeue bool) error {
	r.nacks++
	r.requeue = requeue
	return nil
}

func jobBody(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(Job{
		ID: "job-1",
		Request: feedback.Request{
			InterviewID: "int-1",
			UserID:      "user-1",
			Transcript:  []feedback.TranscriptTurn{{Role: "candidate", Content: "hello"}},
		},
	})
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return body
}

func TestProcessSettlesDeliveries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    feedback.Result
		wantAcks  int
		wantNacks int
	}{
		{name: "success", result: feedback.Ok("fb-1"), wantAcks: 1},
		{name: "input error", result: feedback.Fail(&feedback.Error{Kind: feedback.KindInput, Msg: "transcript is empty"}), wantAcks: 1},
		{name: "generation error", result: feedback.Fail(&feedback.Error{Kind: feedback.KindGeneration, Msg: "model call failed"}), wantNacks: 1},
		{name: "persist error", result: feedback.Fail(&feedback.Error{Kind: feedback.KindPersist, Msg: "failed"}), wantNacks: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ack := &recordingAck{}
			var got feedback.Request
			handler := func(_ context.Context, req feedback.Request) feedback.Result {
				got = req
				return tt.result
			}

			process(context.Background(), jobBody(t), ack, handler, zap.NewNop())

			if got.InterviewID != "int-1" || got.UserID != "user-1" || len(got.Transcript) != 1 {
				t.Fatalf("handler received unexpected request: %+v", got)
			}
			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks {
				t.Fatalf("expected acks=%d nacks=%d, got acks=%d nacks=%d", tt.wantAcks, tt.wantNacks, ack.acks, ack.nacks)
			}
			if ack.requeue {
				t.Fatalf("failed jobs must not be requeued")
			}
		})
	}
}

func TestProcessDropsMalformedJob(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	ack := &recordingAck{}
	called := false

	process(context.Background(), []byte("{not json"), ack, func(context.Context, feedback.Request) feedback.Result {
		called = true
		return feedback.Ok("x")
	}, zap.New(core))

	if called {
		t.Fatalf("handler must not run for malformed jobs")
	}
	if ack.nacks != 1 || ack.requeue {
		t.Fatalf("expected a single nack without requeue, got %+v", ack)
	}
	if observed.FilterMessage("discarding malformed job").Len() != 1 {
		t.Fatalf("expected malformed job to be logged")
	}
}

// stalledModel never answers until its context ends.
type stalledModel struct{}

func (stalledModel) GenerateContent(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestProcessRequeuesJobsInterruptedByShutdown(t *testing.T) {
	store := memory.New()
	builder := feedback.NewPromptBuilder(feedback.DefaultRubric, 0, 0)
	extractor := feedback.NewScoreExtractor(stalledModel{}, builder, feedback.DefaultRubric, feedback.DefaultRetryPolicy(), zap.NewNop(), 0)
	pipeline := feedback.NewPipeline(builder, extractor, feedback.NewUpsertManager(store, zap.NewNop()), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)

	core, observed := observer.New(zapcore.InfoLevel)
	ack := &recordingAck{}
	process(ctx, jobBody(t), ack, pipeline.Submit, zap.New(core))

	if ack.acks != 0 || ack.nacks != 1 || !ack.requeue {
		t.Fatalf("expected a single requeueing nack, got %+v", ack)
	}
	if store.Len() != 0 {
		t.Fatalf("interrupted job must not persist feedback")
	}
	if observed.FilterMessage("job interrupted by shutdown, requeueing").Len() != 1 {
		t.Fatalf("expected the requeue to be logged")
	}
}

func TestProcessAcksInputErrorsDuringShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &recordingAck{}
	process(ctx, jobBody(t), ack, func(context.Context, feedback.Request) feedback.Result {
		return feedback.Fail(&feedback.Error{Kind: feedback.KindInput, Msg: "transcript is empty"})
	}, zap.NewNop())

	if ack.acks != 1 || ack.nacks != 0 {
		t.Fatalf("rejected input must be acked even while stopping, got %+v", ack)
	}
}

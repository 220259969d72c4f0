package feedback

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	logfields "github.com/spigell/interview-feedback/internal/logger"
)

// Pipeline runs Normalize -> Build -> Extract -> Upsert for one request.
type Pipeline struct {
	builder   *PromptBuilder
	extractor *ScoreExtractor
	upserter  *UpsertManager
	logger    *zap.Logger
}

func NewPipeline(builder *PromptBuilder, extractor *ScoreExtractor, upserter *UpsertManager, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		builder:   builder,
		extractor: extractor,
		upserter:  upserter,
		logger:    logger,
	}
}

// Submit never returns an error: every failure is carried by the Result.
func (p *Pipeline) Submit(ctx context.Context, req Request) Result {
	log := p.logger.With(logfields.RequestFields(req.InterviewID, req.UserID, req.FeedbackID)...)

	if strings.TrimSpace(req.InterviewID) == "" || strings.TrimSpace(req.UserID) == "" {
		return Fail(inputError("interviewId and userId are required"))
	}

	turns, err := Normalize(req.Transcript)
	if err != nil {
		log.Info("transcript rejected", zap.Error(err))
		return Fail(asError(err, KindInput))
	}

	prompt := p.builder.Build(turns)

	extraction, err := p.extractor.Extract(ctx, prompt)
	if err != nil {
		log.Warn("feedback extraction failed", zap.Error(err))
		return Fail(asError(err, KindGeneration))
	}

	id, err := p.upserter.Upsert(ctx, extraction.Payload, req.InterviewID, req.UserID, req.FeedbackID)
	if err != nil {
		log.Error("feedback persist failed", zap.Error(err))
		return Fail(asError(err, KindPersist))
	}

	log.Info("feedback stored",
		zap.String(logfields.FieldFeedback, id),
		zap.Int("total_score", extraction.Payload.TotalScore),
		zap.Int("attempts", extraction.Attempts),
		zap.Int("repairs", extraction.Repairs),
	)

	return Ok(id)
}

func asError(err error, fallback Kind) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: fallback, Msg: err.Error(), Err: err}
}

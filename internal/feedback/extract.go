package feedback

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/ai"
	"github.com/spigell/interview-feedback/internal/utils"
)

// State is a step of the extraction state machine.
type State string

const (
	StateGenerating  State = "generating"
	StateValidating  State = "validating"
	StateRepairRetry State = "repair_retry"
	StateValid       State = "valid"
	StateInvalid     State = "invalid"
)

const defaultMaxLogLength = 200

// RetryPolicy bounds model calls made for a single extraction.
type RetryPolicy struct {
	// MaxRepairs is the number of repair prompts sent after invalid output.
	MaxRepairs int
	// MaxGenerationRetries is the number of retries after failed model calls.
	MaxGenerationRetries int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	// CallTimeout limits each model call. Zero disables the limit.
	CallTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRepairs:           2,
		MaxGenerationRetries: 2,
		InitialBackoff:       500 * time.Millisecond,
		MaxBackoff:           8 * time.Second,
		CallTimeout:          60 * time.Second,
	}
}

// MaxCalls is the largest number of model calls one extraction can make.
func (p RetryPolicy) MaxCalls() int {
	return 1 + max(p.MaxRepairs, 0) + max(p.MaxGenerationRetries, 0)
}

// WorstCase is the longest an extraction can run when every call hits
// CallTimeout and every retry waits its full backoff. It is zero when calls
// are unbounded.
func (p RetryPolicy) WorstCase() time.Duration {
	if p.CallTimeout <= 0 {
		return 0
	}

	total := time.Duration(p.MaxCalls()) * p.CallTimeout
	for retry := 1; retry <= p.MaxGenerationRetries; retry++ {
		total += utils.Backoff(retry, p.InitialBackoff, p.MaxBackoff)
	}
	return total
}

// ContentGenerator is the part of a model client the extractor needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Extraction is the outcome of a successful extraction.
type Extraction struct {
	Payload *Payload
	// Attempts counts model calls, including failed ones.
	Attempts    int
	Repairs     int
	Transitions []State
}

// ScoreExtractor drives model calls until the response passes validation or
// the retry policy is exhausted.
type ScoreExtractor struct {
	generator ContentGenerator
	builder   *PromptBuilder
	rubric    Rubric
	policy    RetryPolicy
	logger    *zap.Logger
	maxLogLen int
	wait      func(ctx context.Context, d time.Duration) error
}

func NewScoreExtractor(generator ContentGenerator, builder *PromptBuilder, rubric Rubric, policy RetryPolicy, logger *zap.Logger, maxLogLength int) *ScoreExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if policy.MaxRepairs < 0 {
		policy.MaxRepairs = 0
	}
	if policy.MaxGenerationRetries < 0 {
		policy.MaxGenerationRetries = 0
	}

	return &ScoreExtractor{
		generator: generator,
		builder:   builder,
		rubric:    rubric,
		policy:    policy,
		logger:    logger,
		maxLogLen: maxLogLength,
		wait:      utils.WaitFor,
	}
}

// Extract runs Generating -> Validating -> (Valid | RepairRetry -> Generating | Invalid).
// Failed model calls are retried with exponential backoff, invalid output is
// answered with a repair prompt. Both budgets come from the retry policy.
func (e *ScoreExtractor) Extract(ctx context.Context, prompt Prompt) (*Extraction, error) {
	var (
		state       = StateGenerating
		current     = prompt
		raw         string
		violations  []string
		payload     *Payload
		failures    int
		attempts    int
		repairs     int
		transitions []State
	)

	for {
		transitions = append(transitions, state)

		switch state {
		case StateGenerating:
			attempts++
			out, err := e.generate(ctx, current)
			if err == nil {
				raw = out
				state = StateValidating
				continue
			}

			if ctx.Err() != nil {
				return nil, generationError("generation cancelled", ctx.Err())
			}
			if ai.IsPermanent(err) {
				return nil, generationError("model rejected the request", err)
			}
			if failures >= e.policy.MaxGenerationRetries {
				return nil, generationError("model call failed", err)
			}

			failures++
			delay := utils.Backoff(failures, e.policy.InitialBackoff, e.policy.MaxBackoff)
			e.logger.Warn("model call failed, retrying",
				zap.Int("attempt", attempts),
				zap.Int("retry", failures),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			if err := e.wait(ctx, delay); err != nil {
				return nil, generationError("generation cancelled", err)
			}

		case StateValidating:
			var coerced []string
			payload, violations, coerced = parseResponse(raw, e.rubric)
			if payload != nil && len(coerced) > 0 {
				e.logger.Debug("model response accepted after coercion", zap.Strings("coercions", coerced))
			}
			switch {
			case payload != nil:
				state = StateValid
			case repairs >= e.policy.MaxRepairs:
				state = StateInvalid
			default:
				state = StateRepairRetry
			}

		case StateRepairRetry:
			repairs++
			e.logger.Info("model response rejected, requesting repair",
				zap.Int("repair", repairs),
				zap.Strings("violations", violations),
			)
			current = e.builder.BuildRepair(prompt, raw, violations)
			state = StateGenerating

		case StateValid:
			return &Extraction{
				Payload:     payload,
				Attempts:    attempts,
				Repairs:     repairs,
				Transitions: transitions,
			}, nil

		case StateInvalid:
			e.logger.Warn("model response invalid after repairs",
				zap.Int("attempts", attempts),
				zap.Strings("violations", violations),
			)
			return nil, validationError("model response does not match the feedback schema",
				errors.New(strings.Join(violations, "; ")))
		}
	}
}

func (e *ScoreExtractor) generate(ctx context.Context, prompt Prompt) (string, error) {
	callCtx := ctx
	if e.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.policy.CallTimeout)
		defer cancel()
	}

	e.logger.Debug("generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt.Text)),
		zap.Int("turns", prompt.Turns),
		zap.Int("omitted_turns", prompt.Omitted),
		zap.String("prompt_preview", utils.TruncateForLog(prompt.Text, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(callCtx, prompt.Text)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", errors.Join(errors.New("model call timed out"), err)
		}
		return "", err
	}

	e.logger.Debug("generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return raw, nil
}

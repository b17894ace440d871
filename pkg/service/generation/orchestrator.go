package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxLength    = 512
	DefaultTemperature  = 0.2
	DefaultTimeout      = 60 * time.Second
	DefaultRetryBackoff = time.Second
)

// State is the lifecycle state of the model handle
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

const loadKey = "model"

// Orchestrator owns the generative model handle. The model is loaded lazily
// on first use; concurrent callers share a single in-flight load, and a
// failed load leaves the orchestrator unloaded so a later call can retry.
type Orchestrator struct {
	model  interfaces.LanguageModel
	params model.GenerationParams

	timeout      time.Duration
	loadTimeout  time.Duration
	retryBackoff time.Duration
	sem          *semaphore.Weighted
	metrics      *metrics.Registry

	group  singleflight.Group
	mu     sync.RWMutex
	state  State
	handle interfaces.ModelHandle
}

type Option func(*Orchestrator)

// WithParams sets the sampling parameters passed to every Generate call
func WithParams(p model.GenerationParams) Option {
	return func(o *Orchestrator) {
		o.params = p
	}
}

// WithTimeout bounds each Generate call, including waiting for the load.
// Zero disables the bound; the caller's context still applies.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLoadTimeout bounds a single load attempt
func WithLoadTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.loadTimeout = d
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.retryBackoff = d
	}
}

// WithMaxConcurrent limits concurrent inference calls; 0 means unlimited
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		} else {
			o.sem = nil
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func New(lm interfaces.LanguageModel, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model: lm,
		params: model.GenerationParams{
			MaxLength:   DefaultMaxLength,
			Temperature: DefaultTemperature,
		},
		timeout:      DefaultTimeout,
		retryBackoff: DefaultRetryBackoff,
		state:        StateUnloaded,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Warmup loads the model ahead of the first request
func (o *Orchestrator) Warmup(ctx context.Context) error {
	_, err := o.acquire(ctx)
	return err
}

// Generate answers question from contextText. The prompt is chosen by
// queryType; the raw model output is cleaned of chat-format tokens.
func (o *Orchestrator) Generate(ctx context.Context, contextText, question string, queryType types.QueryType) (answer string, err error) {
	start := time.Now()
	queryType = queryType.Normalize()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(model.KindOf(err))
		}
		o.metrics.ObserveGeneration(queryType.String(), outcome, time.Since(start).Seconds())
	}()

	prompt, err := BuildPrompt(contextText, question, queryType)
	if err != nil {
		return "", goerr.Wrap(err, "failed to build prompt", goerr.T(model.TagGenerationUnavailable))
	}

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	handle, err := o.acquire(callCtx)
	if err != nil {
		return "", err
	}

	if o.sem != nil {
		if err := o.sem.Acquire(callCtx, 1); err != nil {
			return "", timeoutError(err, "timed out waiting for an inference slot", queryType)
		}
		defer o.sem.Release(1)
	}

	raw, err := handle.Generate(callCtx, prompt, o.params)
	if err != nil {
		if callCtx.Err() != nil {
			return "", timeoutError(err, "generation did not finish in time", queryType)
		}
		return "", goerr.Wrap(err, "generation failed",
			goerr.V("query_type", queryType),
			goerr.T(model.TagGenerationUnavailable))
	}

	answer = CleanAnswer(raw)
	if answer == "" {
		return "", goerr.New("model returned an empty answer",
			goerr.V("query_type", queryType),
			goerr.V("raw_length", len(raw)),
			goerr.T(model.TagGenerationUnavailable))
	}
	return answer, nil
}

// acquire returns the ready handle, loading the model if needed. Waiting
// callers give up when ctx ends, but the load itself keeps running.
func (o *Orchestrator) acquire(ctx context.Context) (interfaces.ModelHandle, error) {
	o.mu.RLock()
	if o.state == StateReady {
		h := o.handle
		o.mu.RUnlock()
		return h, nil
	}
	o.mu.RUnlock()

	ch := o.group.DoChan(loadKey, func() (any, error) {
		return o.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(interfaces.ModelHandle), nil
	case <-ctx.Done():
		return nil, timeoutError(ctx.Err(), "timed out waiting for the model to load", "")
	}
}

func (o *Orchestrator) load(ctx context.Context) (interfaces.ModelHandle, error) {
	o.mu.Lock()
	if o.state == StateReady {
		h := o.handle
		o.mu.Unlock()
		return h, nil
	}
	o.state = StateLoading
	o.mu.Unlock()

	logger := logging.From(ctx)
	logger.Info("loading generative model")

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			time.Sleep(o.retryBackoff)
		}

		h, err := o.loadOnce(ctx)
		if err == nil {
			o.mu.Lock()
			o.handle = h
			o.state = StateReady
			o.mu.Unlock()
			o.metrics.IncGenerationLoad("ok")
			logger.Info("generative model ready", "attempt", attempt)
			return h, nil
		}

		lastErr = err
		o.metrics.IncGenerationLoad("error")
		logger.Warn("failed to load generative model", "attempt", attempt, "error", err)
	}

	o.mu.Lock()
	o.handle = nil
	o.state = StateUnloaded
	o.mu.Unlock()

	return nil, goerr.Wrap(lastErr, "generative model is unavailable",
		goerr.T(model.TagGenerationUnavailable),
		goerr.T(model.TagModelUnavailable))
}

func (o *Orchestrator) loadOnce(ctx context.Context) (interfaces.ModelHandle, error) {
	if o.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.loadTimeout)
		defer cancel()
	}

	h, err := o.model.Load(ctx)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, goerr.New("model load returned no handle")
	}
	return h, nil
}

func timeoutError(cause error, msg string, queryType types.QueryType) error {
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	opts := []goerr.Option{goerr.T(model.TagGenerationTimeout)}
	if queryType != "" {
		opts = append(opts, goerr.V("query_type", queryType))
	}
	if errors.Is(cause, context.Canceled) {
		opts = append(opts, goerr.V("canceled", true))
	}
	return goerr.Wrap(cause, msg, opts...)
}

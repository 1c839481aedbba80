// Package engine is the request facade over the extraction pipeline.
//
// Every operation follows the same path: validate the size controls, resolve
// the filing, fetch it through the result cache, extract, compact, cache the
// compacted result and wrap it in an Envelope. Operations never return Go
// errors; failures travel in the envelope as a code and a sanitized message.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/observe"
	"github.com/hurttlocker/filingintel/internal/provider"
	"github.com/hurttlocker/filingintel/internal/window"
)

// ErrorBody is the error half of an Envelope.
type ErrorBody struct {
	Code    errcode.Code `json:"code"`
	Message string       `json:"message"`
}

// FilingReference names the filing a result was derived from.
type FilingReference struct {
	Form          string `json:"form,omitempty"`
	AccessionOrID string `json:"accession_or_id,omitempty"`
	Date          string `json:"date,omitempty"`
	URL           string `json:"url,omitempty"`
	Identifier    string `json:"identifier,omitempty"`
}

// Envelope is the uniform response of every operation.
type Envelope struct {
	Success         bool             `json:"success"`
	Data            any              `json:"data"`
	Error           *ErrorBody       `json:"error"`
	FilingReference *FilingReference `json:"filing_reference"`
}

// Engine serves extraction requests. It is safe for concurrent use and holds
// no state beyond its cache.
type Engine struct {
	provider  provider.Provider
	extractor *extract.Extractor
	cache     *cache.Cache
	ownsCache bool
	window    *window.Aggregator
	windowOps []window.Option
	logger    *zap.Logger
	tracer    trace.Tracer
	requests  metric.Int64Counter
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache shares c instead of creating a cache owned by the engine.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMeter records request counts on m.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) {
		if m != nil {
			e.requests, _ = m.Int64Counter("filingintel.engine.requests")
		}
	}
}

// WithClock replaces time.Now for filing resolution.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithWindowOptions configures the event window aggregator.
func WithWindowOptions(opts ...window.Option) Option {
	return func(e *Engine) {
		e.windowOps = append(e.windowOps, opts...)
	}
}

// New creates an Engine. Without WithCache the engine creates its own cache
// with default options; Close releases it.
func New(p provider.Provider, x *extract.Extractor, opts ...Option) *Engine {
	if x == nil {
		x = extract.New(nil)
	}
	e := &Engine{
		provider:  p,
		extractor: x,
		logger:    zap.NewNop(),
		tracer:    observe.Tracer("engine"),
		now:       time.Now,
	}
	WithMeter(observe.Meter("engine"))(e)
	for _, o := range opts {
		o(e)
	}
	if e.cache == nil {
		e.cache = cache.New(cache.Options{Logger: e.logger})
		e.ownsCache = true
	}
	wopts := append([]window.Option{window.WithFetcher(e.document), window.WithLogger(e.logger)}, e.windowOps...)
	e.window = window.New(p, x, wopts...)
	return e
}

// Close stops the cache sweep if the engine owns the cache.
func (e *Engine) Close() {
	if e.ownsCache {
		e.cache.Close()
	}
}

// CacheStats reports result cache activity.
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// document fetches loc through the cache.
func (e *Engine) document(ctx context.Context, loc provider.Locator) (*document.Document, error) {
	key := cache.Key{DocumentID: loc.DocumentID, Signature: "document"}
	return cache.Do(ctx, e.cache, key, func(ctx context.Context) (*document.Document, error) {
		return e.provider.FetchDocument(ctx, loc)
	})
}

// handler is the body of one operation. It returns the data and, when a
// filing was resolved, its reference.
type handler func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error)

func (e *Engine) run(ctx context.Context, op string, h handler) Envelope {
	requestID := uuid.NewString()
	start := time.Now()
	log := e.logger.With(zap.String("request_id", requestID), zap.String("op", op))
	ctx, span := e.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	data, ref, err := h(ctx, log)
	env := Envelope{FilingReference: ref}
	code := "OK"
	if err != nil {
		ce := errcode.From(err)
		code = string(ce.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		log.Warn("engine: request failed",
			zap.String("code", code), zap.Error(err), zap.Duration("duration", time.Since(start)))
		env.Error = &ErrorBody{Code: ce.Code, Message: ce.Message}
	} else {
		env.Success = true
		env.Data = data
		log.Debug("engine: request served", zap.Duration("duration", time.Since(start)))
	}
	e.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("code", code)))
	return env
}

func reference(loc provider.Locator) *FilingReference {
	// exhibits share their filing's accession, so they keep their own id
	id := loc.Accession
	if id == "" || loc.Kind() == provider.KindExhibit {
		id = loc.DocumentID
	}
	ref := &FilingReference{
		Form:          loc.Form,
		AccessionOrID: id,
		URL:           loc.URL,
		Identifier:    loc.Identifier,
	}
	if !loc.FilingDate.IsZero() {
		ref.Date = loc.FilingDate.UTC().Format(dateLayout)
	}
	return ref
}

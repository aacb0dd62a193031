package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teleshop/api/internal/repositories"
)

var (
	// ErrCounterInvalidInput indicates the caller supplied malformed counter arguments.
	ErrCounterInvalidInput = errors.New("counter: invalid input")
	// ErrCounterExhausted indicates the counter reached its configured maximum.
	ErrCounterExhausted = errors.New("counter: exhausted")
	// ErrCounterUnavailable indicates the backing store rejected the increment.
	ErrCounterUnavailable = errors.New("counter: unavailable")
)

// CounterServiceDeps bundles dependencies for the counter service.
type CounterServiceDeps struct {
	Counters repositories.CounterRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type counterService struct {
	counters repositories.CounterRepository
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)

	configMu   sync.Mutex
	configured map[string]string
}

// NewCounterService wires a CounterService backed by a transactional counter store.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Counters == nil {
		return nil, fmt.Errorf("counter service requires a counter repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &counterService{
		counters:   deps.Counters,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		configured: make(map[string]string),
	}, nil
}

func (s *counterService) Next(ctx context.Context, scope string, name string, opts CounterGenerationOptions) (CounterValue, error) {
	scope = strings.TrimSpace(scope)
	name = strings.TrimSpace(name)
	if scope == "" || name == "" {
		return CounterValue{}, fmt.Errorf("%w: scope and name are required", ErrCounterInvalidInput)
	}
	if opts.Step < 0 {
		return CounterValue{}, fmt.Errorf("%w: step must not be negative", ErrCounterInvalidInput)
	}
	step := opts.Step
	if step == 0 {
		step = 1
	}

	counterID := scope + ":" + name
	if err := s.ensureConfiguration(ctx, counterID, opts); err != nil {
		return CounterValue{}, err
	}

	value, err := s.counters.Next(ctx, counterID, step)
	if err != nil {
		return CounterValue{}, s.translateCounterError(err)
	}

	formatted := s.formatValue(value, opts)
	s.logger(ctx, "counter.generated", map[string]any{
		"counter": counterID,
		"value":   value,
	})
	return CounterValue{Value: value, Formatted: formatted}, nil
}

// NextOrderNumber issues the next day-scoped order number, e.g. ORD-20260901-001.
// The sequence resets each calendar day because the counter key embeds the date.
func (s *counterService) NextOrderNumber(ctx context.Context) (string, error) {
	day := s.now().Format("20060102")
	value, err := s.Next(ctx, "orders", "day:"+day, CounterGenerationOptions{
		Formatter: func(_ time.Time, seq int64) string {
			return fmt.Sprintf("ORD-%s-%03d", day, seq)
		},
	})
	if err != nil {
		return "", err
	}
	return value.Formatted, nil
}

// ensureConfiguration pushes counter limits to the repository once per distinct
// option signature, so Next stays a single round trip on the hot path.
func (s *counterService) ensureConfiguration(ctx context.Context, counterID string, opts CounterGenerationOptions) error {
	if opts.MaxValue == nil && opts.InitialValue == nil {
		return nil
	}

	signature := counterSignature(opts)
	s.configMu.Lock()
	if s.configured[counterID] == signature {
		s.configMu.Unlock()
		return nil
	}
	s.configMu.Unlock()

	cfg := repositories.CounterConfig{}
	if opts.MaxValue != nil {
		cfg.MaxValue = opts.MaxValue
	}
	if opts.InitialValue != nil {
		cfg.InitialValue = opts.InitialValue
	}
	if err := s.counters.Configure(ctx, counterID, cfg); err != nil {
		return s.translateCounterError(err)
	}

	s.configMu.Lock()
	s.configured[counterID] = signature
	s.configMu.Unlock()
	return nil
}

func (s *counterService) formatValue(value int64, opts CounterGenerationOptions) string {
	if opts.Formatter != nil {
		return opts.Formatter(s.now(), value)
	}
	body := fmt.Sprintf("%d", value)
	if opts.PadLength > 0 {
		body = fmt.Sprintf("%0*d", opts.PadLength, value)
	}
	return opts.Prefix + body + opts.Suffix
}

func (s *counterService) translateCounterError(err error) error {
	var counterErr *repositories.CounterError
	if errors.As(err, &counterErr) {
		switch counterErr.Code {
		case repositories.CounterErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Message)
		case repositories.CounterErrorExhausted:
			return fmt.Errorf("%w: %s", ErrCounterExhausted, counterErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
}

func counterSignature(opts CounterGenerationOptions) string {
	var b strings.Builder
	if opts.MaxValue != nil {
		fmt.Fprintf(&b, "max=%d;", *opts.MaxValue)
	}
	if opts.InitialValue != nil {
		fmt.Fprintf(&b, "init=%d;", *opts.InitialValue)
	}
	return b.String()
}

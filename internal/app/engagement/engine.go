package engagement

import (
	"log"
	"time"

	"github.com/lockin-app/lockin/internal/domain"
)

// DefaultCascadeLimit bounds the badge passes of one operation.
const DefaultCascadeLimit = 4

// MaxSessionMinutes is the longest session RecordSession accepts.
const MaxSessionMinutes = 600

// Engine is the reward engine. Every operation runs as one unit of work
// against the store. Engine holds no per-user state and is safe for
// concurrent use.
type Engine struct {
	store        domain.ProgressionStore
	catalog      []domain.Badge
	loc          *time.Location
	now          func() time.Time
	cascadeLimit int
	debug        bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCascadeLimit sets the maximum number of badge passes per operation.
func WithCascadeLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cascadeLimit = n
		}
	}
}

// WithCatalog replaces the default badge catalog.
func WithCatalog(c []domain.Badge) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithDebug enables per-grant debug logging.
func WithDebug(on bool) Option {
	return func(e *Engine) {
		e.debug = on
	}
}

// NewEngine creates a reward engine over store.
func NewEngine(store domain.ProgressionStore, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		catalog:      Catalog(),
		loc:          time.Local,
		now:          time.Now,
		cascadeLimit: DefaultCascadeLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the badge catalog the engine evaluates.
func (e *Engine) Catalog() []domain.Badge {
	out := make([]domain.Badge, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// Location returns the time zone that defines calendar days.
func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) debugf(format string, args ...any) {
	if e.debug {
		log.Printf("[engagement] "+format, args...)
	}
}

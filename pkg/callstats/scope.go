package callstats

import "context"

// Scope ties one activation to a lexical region:
//
//	defer callstats.NewScope(stats, id).Close()
//
// Close runs on every exit path, so enters and leaves always pair up.
type Scope struct {
	stats *Stats // nil when the scope did not enter
	timer Timer
}

// NewScope enters counter id on stats. A nil stats, or one whose mode is
// disabled, yields an inert scope.
func NewScope(stats *Stats, id CounterID) *Scope {
	sc := &Scope{}
	if stats == nil || stats.Mode() == Disabled {
		return sc
	}
	sc.stats = stats
	stats.Enter(&sc.timer, id)
	return sc
}

// Close leaves the activation. Calling it again is a no-op.
func (sc *Scope) Close() {
	if sc.stats == nil {
		return
	}
	sc.stats.Leave(&sc.timer)
	sc.stats = nil
}

// Active reports whether the scope entered and has not been closed.
func (sc *Scope) Active() bool {
	return sc.stats != nil
}

// Measure runs fn inside an activation of counter id.
func Measure(stats *Stats, id CounterID, fn func()) {
	defer NewScope(stats, id).Close()
	fn()
}

type contextKey struct{}

// WithStats returns a context carrying stats.
func WithStats(ctx context.Context, stats *Stats) context.Context {
	return context.WithValue(ctx, contextKey{}, stats)
}

// FromContext returns the Stats carried by ctx, or nil.
func FromContext(ctx context.Context) *Stats {
	stats, _ := ctx.Value(contextKey{}).(*Stats)
	return stats
}

// Start opens a scope on the Stats carried by ctx.
func Start(ctx context.Context, id CounterID) *Scope {
	return NewScope(FromContext(ctx), id)
}

package proc

// OneshotScope is a scoped, per-handle cache of raw records. While a
// scope is open, accessors for record kinds listed in the backend's
// GroupTable fetch through the cache, so several logical queries share
// one underlying kernel read and observe one consistent snapshot.
//
// A scope is a sequential optimization, not a shared cache: it is
// single-use and must not be used concurrently from multiple goroutines.
type OneshotScope struct {
	p      *Process
	owner  bool
	closed bool
}

// Oneshot opens a cache scope on the handle. Close the returned scope on
// every exit path; WithOneshot does this automatically. Nested scopes
// share the outermost scope's cache and closing an inner scope is a
// no-op.
func (p *Process) Oneshot() *OneshotScope {
	p.mu.Lock()
	defer p.mu.Unlock()

	scope := &OneshotScope{p: p}
	if p.cache == nil {
		p.cache = make(map[RawKind]any)
		scope.owner = true
	}
	return scope
}

// Close discards all cached records. Idempotent: closing an
// already-closed scope does nothing.
func (s *OneshotScope) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.owner {
		s.p.mu.Lock()
		s.p.cache = nil
		s.p.mu.Unlock()
	}
}

// WithOneshot runs fn inside a oneshot scope, releasing the cache on
// every exit path including error returns and panics.
func (p *Process) WithOneshot(fn func() error) error {
	scope := p.Oneshot()
	defer scope.Close()
	return fn()
}

func (p *Process) cacheEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache != nil
}

// fetchCached serves one raw record kind through the handle's oneshot
// cache. Outside a scope it always calls fetch; inside a scope the first
// call per kind fetches and later calls reuse the stored record. Errors
// are never cached.
func fetchCached[T any](p *Process, kind RawKind, fetch func() (T, error)) (T, error) {
	p.mu.Lock()
	if p.cache != nil {
		if v, ok := p.cache[kind]; ok {
			p.mu.Unlock()
			return v.(T), nil
		}
	}
	p.mu.Unlock()

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	p.mu.Lock()
	if p.cache != nil {
		p.cache[kind] = v
	}
	p.mu.Unlock()

	return v, nil
}

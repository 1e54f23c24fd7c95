package window

import "time"

// Cache holds a value derived from the latest scan together with the
// instant that scan stopped. The value stays current until now reaches that
// marker; then Refresh runs the next scan from the marker.
//
// A Cache has a single owner and is not safe for concurrent use.
type Cache[T any] struct {
	scanner Scanner
	build   func(Pass) T

	value T
	end   time.Time
}

// NewCache returns an empty cache; it is stale until the first Refresh.
func NewCache[T any](scanner Scanner, build func(Pass) T) *Cache[T] {
	return &Cache[T]{scanner: scanner, build: build}
}

// Stale reports whether now has reached the end of the cached window.
func (c *Cache[T]) Stale(now time.Time) bool {
	return !now.Before(c.end)
}

// Refresh rescans when stale. It returns the pass and true if a scan ran.
func (c *Cache[T]) Refresh(now time.Time) (Pass, bool) {
	if !c.Stale(now) {
		return Pass{}, false
	}

	pass := c.scanner.Scan(c.nextStart(now))
	c.value = c.build(pass)
	c.end = pass.End
	return pass, true
}

// nextStart continues from the previous marker unless there is none or it
// lags now by at least the forecast horizon. Propagators take whole seconds,
// so the start is truncated to one.
func (c *Cache[T]) nextStart(now time.Time) time.Time {
	start := c.end
	if start.IsZero() || now.Sub(start) >= c.scanner.Config.MaxForecast {
		start = now
	}
	return start.Truncate(time.Second)
}

// Value returns the value built from the latest scan.
func (c *Cache[T]) Value() T { return c.value }

// End returns the marker of the latest scan; zero before the first.
func (c *Cache[T]) End() time.Time { return c.end }

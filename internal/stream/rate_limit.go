package stream

import "sync"

// defaultMaxTotal caps open streams across all clients when Config.MaxTotal is unset.
const defaultMaxTotal = 1000

// Limit reasons, used as the stream_errors_total label.
const (
	limitPerIP = "limit_per_ip"
	limitTotal = "limit_total"
)

// streamLimiter counts open streams per client IP and in total.
type streamLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotal
	}
	return &streamLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire opens a slot for ip. When a cap is reached it returns false and
// the name of the cap.
func (l *streamLimiter) acquire(ip string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return false, limitTotal
	case l.open[ip] >= l.maxPerIP:
		return false, limitPerIP
	}
	l.open[ip]++
	l.total++
	return true, ""
}

// release closes a slot for ip. Releasing an ip with no open slot is a no-op.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.open[ip]
	if !ok {
		return
	}
	l.total--
	if n <= 1 {
		delete(l.open, ip)
		return
	}
	l.open[ip] = n - 1
}

// count returns the open streams for ip and in total.
func (l *streamLimiter) count(ip string) (perIP, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip], l.total
}

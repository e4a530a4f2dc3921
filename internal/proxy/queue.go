package proxy

// ring is a fixed-capacity FIFO of endpoints. Not safe for concurrent use;
// the Pool guards it with its mutex.
type ring struct {
	buf   []string
	head  int // read position
	tail  int // write position
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]string, capacity)}
}

// push appends to the back. Returns false when full.
func (r *ring) push(e string) bool {
	if r.count == len(r.buf) {
		return false
	}
	r.buf[r.tail] = e
	r.tail = (r.tail + 1) % len(r.buf)
	r.count++
	return true
}

// pop removes the front item.
func (r *ring) pop() (string, bool) {
	if r.count == 0 {
		return "", false
	}
	e := r.buf[r.head]
	r.buf[r.head] = ""
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return e, true
}

// popAvoiding removes the oldest item that is not avoid. If avoid is the only
// item queued it is returned anyway. Relative order of the rest is preserved.
func (r *ring) popAvoiding(avoid string) (string, bool) {
	if r.count == 0 {
		return "", false
	}
	if avoid == "" || r.buf[r.head] != avoid || r.count == 1 {
		return r.pop()
	}

	// Head is avoid: take the next one and close the gap.
	idx := (r.head + 1) % len(r.buf)
	e := r.buf[idx]
	for i := 1; i < r.count-1; i++ {
		cur := (r.head + i) % len(r.buf)
		next := (cur + 1) % len(r.buf)
		r.buf[cur] = r.buf[next]
	}
	r.tail = (r.tail - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.tail] = ""
	r.count--
	return e, true
}

func (r *ring) len() int { return r.count }

// snapshot returns queued items front to back.
func (r *ring) snapshot() []string {
	out := make([]string, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

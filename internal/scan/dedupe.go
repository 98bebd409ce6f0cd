package scan

// dedupe remembers up to capacity keys, evicting the oldest insertion first.
type dedupe struct {
	seen  map[string]struct{}
	order []string // ring of inserted keys
	next  int
}

func newDedupe(capacity int) *dedupe {
	if capacity <= 0 {
		capacity = DefaultConfig().DedupeCapacity
	}
	return &dedupe{
		seen:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

func (d *dedupe) Has(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Add records key. Adding a known key is a no-op.
func (d *dedupe) Add(key string) {
	if d.Has(key) {
		return
	}
	if len(d.order) < cap(d.order) {
		d.order = append(d.order, key)
	} else {
		delete(d.seen, d.order[d.next])
		d.order[d.next] = key
		d.next = (d.next + 1) % len(d.order)
	}
	d.seen[key] = struct{}{}
}

func (d *dedupe) Len() int { return len(d.seen) }

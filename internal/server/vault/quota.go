package vault

// Quota computes storage usage live from the filesystem. Usage covers both
// the main storage root and the quick-transfer root, so ephemeral drops count
// against the same cap. There is no cached counter and no reservation across
// the check-then-write gap; both are accepted trade-offs at personal scale.
type Quota struct {
	roots []string
	total int64
}

// NewQuota creates a tracker with the given byte cap over one or more roots.
func NewQuota(total int64, roots ...string) *Quota {
	return &Quota{roots: roots, total: total}
}

// Total returns the configured cap in bytes.
func (q *Quota) Total() int64 {
	return q.total
}

// Used walks every tracked root and sums file sizes.
func (q *Quota) Used() int64 {
	var used int64
	for _, root := range q.roots {
		used += RecursiveSize(root)
	}
	return used
}

// Available returns the remaining byte budget, never negative.
func (q *Quota) Available() int64 {
	if avail := q.total - q.Used(); avail > 0 {
		return avail
	}
	return 0
}

// WouldExceed reports whether writing an additional n bytes would push usage
// past the cap.
func (q *Quota) WouldExceed(n int64) bool {
	return q.Used()+n > q.total
}

package pagination

import "fmt"

const (
	// DefaultLimit is the page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows a single listing can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Skip  int
	Limit int
}

// Normalize clamps skip to zero and applies the default and maximum limits.
func (p Params) Normalize() Params {
	if p.Skip < 0 {
		p.Skip = 0
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Key renders the params as a stable cache-key fragment.
func (p Params) Key() string {
	return fmt.Sprintf("skip=%d:limit=%d", p.Skip, p.Limit)
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

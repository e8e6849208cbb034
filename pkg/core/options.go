package core

import "github.com/recallhq/recall-go/pkg/memory"

// retrieveOptions holds per-call overrides for RetrieveContext.
type retrieveOptions struct {
	limits            map[memory.Kind]int
	thresholdOverride *float64
	timeoutMs         int
	includeKinds      []memory.Kind
	bypassCache       bool
}

// RetrieveOption configures a single RetrieveContext call.
type RetrieveOption func(*retrieveOptions)

// WithMaxItems caps the number of returned items for one kind, overriding
// the allocated per-kind limit.
func WithMaxItems(kind memory.Kind, limit int) RetrieveOption {
	return func(o *retrieveOptions) {
		if o.limits == nil {
			o.limits = make(map[memory.Kind]int)
		}
		o.limits[kind] = limit
	}
}

// WithSimilarityThreshold replaces the adaptive similarity threshold for this
// call. The value is applied verbatim, outside the adaptive clamp range.
func WithSimilarityThreshold(threshold float64) RetrieveOption {
	return func(o *retrieveOptions) {
		o.thresholdOverride = &threshold
	}
}

// WithTimeoutMs replaces the overall retrieval timeout for this call.
func WithTimeoutMs(ms int) RetrieveOption {
	return func(o *retrieveOptions) {
		o.timeoutMs = ms
	}
}

// WithKinds restricts retrieval to the given memory kinds. Unknown kinds are
// ignored; an empty result set falls back to all kinds.
func WithKinds(kinds ...memory.Kind) RetrieveOption {
	return func(o *retrieveOptions) {
		for _, k := range kinds {
			if k.Valid() {
				o.includeKinds = append(o.includeKinds, k)
			}
		}
	}
}

// WithCacheBypass skips the result cache for this call. Fresh results are
// still written back to the cache.
func WithCacheBypass() RetrieveOption {
	return func(o *retrieveOptions) {
		o.bypassCache = true
	}
}

// kinds returns the effective kind set for the call, in precedence order.
func (o *retrieveOptions) kinds() []memory.Kind {
	if len(o.includeKinds) == 0 {
		return memory.AllKinds()
	}
	ordered := make([]memory.Kind, 0, len(o.includeKinds))
	for _, k := range memory.AllKinds() {
		for _, want := range o.includeKinds {
			if k == want {
				ordered = append(ordered, k)
				break
			}
		}
	}
	return ordered
}

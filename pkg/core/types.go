// Package core provides the retrieval orchestrator and the public
// RetrieveContext surface.
package core

import (
	"github.com/recallhq/recall-go/pkg/memory"
)

// Section is one kind's portion of the assembled context bundle.
type Section struct {
	// Kind is the memory kind the section was assembled from.
	Kind memory.Kind `json:"kind"`

	// FormattedText is the rendered section, header included.
	FormattedText string `json:"formatted_text"`

	// Available reports whether the kind's retrieval branch produced
	// usable results. An unavailable section carries an explicit note so
	// the caller can tell "no relevant data" apart from "this branch
	// failed".
	Available bool `json:"available"`

	// ItemCount is the number of items rendered into the section.
	ItemCount int `json:"item_count"`

	// MeanSalience is the kind-level average salience, the section
	// ordering key.
	MeanSalience float64 `json:"mean_salience"`
}

// BundleMetadata describes how the bundle was produced.
type BundleMetadata struct {
	// QueryEcho is the query the bundle was assembled for.
	QueryEcho string `json:"query_echo"`

	// PerKindCounts is the number of items per kind after dedup and
	// budget clamping.
	PerKindCounts map[memory.Kind]int `json:"per_kind_counts"`

	// ThresholdsUsed records the similarity threshold each kind ran with.
	ThresholdsUsed map[memory.Kind]float64 `json:"thresholds_used"`

	// Truncated reports that the overall timeout or a cancellation fired
	// and the bundle was assembled from partial results.
	Truncated bool `json:"truncated"`

	// Degraded maps kinds to the reason their branch degraded or failed.
	// Empty when every branch completed normally.
	Degraded map[memory.Kind]string `json:"degraded,omitempty"`

	// ElapsedMs is the wall-clock duration of the call in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// ContextBundle is the final output of one retrieval call: the ranked,
// deduplicated, budget-clamped context text plus metadata about how it was
// produced. The pipeline holds no reference to a bundle after returning it.
type ContextBundle struct {
	// Sections are ordered by descending kind-level mean salience.
	Sections []Section `json:"sections"`

	// Text is the full rendered bundle: every section plus the trailing
	// instructions block, or the explicit no-context notice when nothing
	// was retrieved.
	Text string `json:"text"`

	// Metadata describes how the bundle was produced.
	Metadata BundleMetadata `json:"metadata"`
}

// HasContent reports whether any section rendered at least one item.
func (b *ContextBundle) HasContent() bool {
	for _, section := range b.Sections {
		if section.ItemCount > 0 {
			return true
		}
	}
	return false
}

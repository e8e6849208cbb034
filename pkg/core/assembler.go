package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall-go/pkg/budget"
	"github.com/recallhq/recall-go/pkg/memory"
	"github.com/recallhq/recall-go/pkg/retrieval"
)

const (
	// noContextNotice is rendered when no branch produced any item, so
	// downstream consumers see an explicit signal instead of an empty
	// string.
	noContextNotice = "No relevant context was found for this query."

	// instructionsBlock trails every non-empty bundle and tells the
	// consumer how to treat the assembled material.
	instructionsBlock = "Use the context above when it is relevant to the request. " +
		"Prefer recent items over older ones, and treat related items as supporting detail rather than direct matches."
)

var sectionTitles = map[memory.Kind]string{
	memory.KindCode:         "Relevant Code",
	memory.KindConversation: "Recent Conversations",
	memory.KindNarrative:    "Background Notes",
}

// assemble renders the final bundle from the deduplicated per-kind results.
//
// Sections are ordered by descending kind-level mean salience so the most
// useful material comes first regardless of kind precedence. Kinds whose
// branch failed still get a section carrying an explicit unavailability
// note; that keeps "nothing relevant" distinguishable from "branch failed".
func assemble(query string, kinds []memory.Kind, deduped map[memory.Kind][]*memory.ScoredChunk, results map[memory.Kind]*retrieval.Result, b *budget.Budget, elapsed time.Duration) *ContextBundle {
	metadata := BundleMetadata{
		QueryEcho:      query,
		PerKindCounts:  make(map[memory.Kind]int, len(kinds)),
		ThresholdsUsed: make(map[memory.Kind]float64, len(kinds)),
		ElapsedMs:      elapsed.Milliseconds(),
	}

	sections := make([]Section, 0, len(kinds))
	for _, kind := range kinds {
		chunks := deduped[kind]
		result := results[kind]

		metadata.PerKindCounts[kind] = len(chunks)
		metadata.ThresholdsUsed[kind] = b.SimilarityThreshold[kind]

		if result != nil {
			if result.Partial {
				metadata.Truncated = true
			}
			if result.Status != retrieval.StatusOK && result.Reason != "" {
				if metadata.Degraded == nil {
					metadata.Degraded = make(map[memory.Kind]string)
				}
				metadata.Degraded[kind] = result.Reason
			}
		}

		sections = append(sections, renderSection(kind, chunks, result))
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].MeanSalience > sections[j].MeanSalience
	})

	bundle := &ContextBundle{Sections: sections, Metadata: metadata}
	bundle.Text = renderText(bundle)
	return bundle
}

// renderSection formats one kind's section.
func renderSection(kind memory.Kind, chunks []*memory.ScoredChunk, result *retrieval.Result) Section {
	section := Section{
		Kind:      kind,
		ItemCount: len(chunks),
		Available: result == nil || result.Status != retrieval.StatusFailed,
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", sectionTitles[kind])

	switch {
	case !section.Available:
		reason := "the source was unavailable"
		if result != nil && result.Reason != "" {
			reason = result.Reason
		}
		fmt.Fprintf(&sb, "_This section is unavailable: %s._\n", reason)
	case len(chunks) == 0:
		sb.WriteString("_Nothing relevant found._\n")
	default:
		total := 0.0
		for i, sc := range chunks {
			total += sc.Salience
			renderItem(&sb, kind, i+1, sc)
		}
		section.MeanSalience = total / float64(len(chunks))
	}

	section.FormattedText = strings.TrimRight(sb.String(), "\n")
	return section
}

// renderItem formats one chunk, kind-appropriately: code gets a fenced block
// with a language tag, conversational and narrative items get timestamps.
func renderItem(sb *strings.Builder, kind memory.Kind, index int, sc *memory.ScoredChunk) {
	related := ""
	if sc.RelatedTo != "" {
		related = " (related)"
	}

	switch kind {
	case memory.KindCode:
		language := ""
		if lang, ok := sc.Chunk.Metadata["language"].(string); ok {
			language = lang
		}
		fmt.Fprintf(sb, "%d.%s\n```%s\n%s\n```\n\n", index, related, language, sc.Chunk.Content)
	default:
		timestamp := ""
		if !sc.Chunk.Timestamp.IsZero() {
			timestamp = sc.Chunk.Timestamp.Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(sb, "%d. %s%s%s\n\n", index, timestamp, sc.Chunk.Content, related)
	}
}

// renderText joins the sections into the full bundle text.
func renderText(bundle *ContextBundle) string {
	if !bundle.HasContent() {
		return noContextNotice
	}

	parts := make([]string, 0, len(bundle.Sections)+1)
	for _, section := range bundle.Sections {
		parts = append(parts, section.FormattedText)
	}
	parts = append(parts, "---\n"+instructionsBlock)

	return strings.Join(parts, "\n\n")
}

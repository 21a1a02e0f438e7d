// Package metrics folds per-response match summaries into per-prompt and
// per-campaign visibility KPIs. Summarize and Aggregate are pure functions:
// the same inputs always produce identical output, in any order.
package metrics

import (
	"sort"

	"github.com/SAM252003/Nehoris/internal/brand"
)

// LeadWindow is the prefix length, in bytes, considered the "lead" of a
// response when flagging early mentions.
const LeadWindow = 300

// BrandSummary holds per-brand counts for a single response.
type BrandSummary struct {
	Total        int  `json:"total"`
	ExactCount   int  `json:"exact_count"`
	FuzzyCount   int  `json:"fuzzy_count"`
	FirstMention *int `json:"first_mention,omitempty"` // nil when never mentioned
	AppearLead   bool `json:"appear_lead"`             // first mention inside LeadWindow
}

// ResponseSummary maps brand name to its counts for one response.
// Treated as immutable once computed.
type ResponseSummary map[string]BrandSummary

// BrandMetrics holds per-brand aggregates over a batch of responses.
type BrandMetrics struct {
	TotalMentions      int      `json:"total_mentions"`
	ExactTotal         int      `json:"exact_total"`
	FuzzyTotal         int      `json:"fuzzy_total"`
	PromptsWithMention int      `json:"prompts_with_mention"`
	MentionRate        float64  `json:"mention_rate"`
	AvgFirstOffset     *float64 `json:"avg_first_offset,omitempty"`
	MedianFirstOffset  *float64 `json:"median_first_offset,omitempty"`
}

// BatchMetrics is the aggregate over a batch of response summaries.
// Each Aggregate call builds a fresh snapshot; nothing is mutated in place.
type BatchMetrics struct {
	PromptCount int                     `json:"prompt_count"`
	ByBrand     map[string]BrandMetrics `json:"by_brand"`
}

// Summarize groups matches by brand, counting per method and tracking the
// minimum offset as the first mention.
func Summarize(matches []brand.Match) ResponseSummary {
	summary := make(ResponseSummary)
	for _, m := range matches {
		s := summary[m.Brand]
		s.Total++
		switch m.Method {
		case brand.MethodExact:
			s.ExactCount++
		case brand.MethodFuzzy:
			s.FuzzyCount++
		}
		if s.FirstMention == nil || m.Start < *s.FirstMention {
			offset := m.Start
			s.FirstMention = &offset
		}
		summary[m.Brand] = s
	}
	for name, s := range summary {
		s.AppearLead = s.FirstMention != nil && *s.FirstMention < LeadWindow
		summary[name] = s
	}
	return summary
}

// Aggregate folds a list of summaries into batch-level metrics. The fold is
// commutative: permuting the input yields an identical result.
func Aggregate(summaries []ResponseSummary) BatchMetrics {
	out := BatchMetrics{
		PromptCount: len(summaries),
		ByBrand:     make(map[string]BrandMetrics),
	}
	if len(summaries) == 0 {
		return out
	}

	// Union of all brand keys, sorted so the fold order is fixed.
	names := make(map[string]struct{})
	for _, s := range summaries {
		for name := range s {
			names[name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var bm BrandMetrics
		var offsets []int
		for _, s := range summaries {
			bs, ok := s[name]
			if !ok || bs.Total == 0 {
				continue
			}
			bm.TotalMentions += bs.Total
			bm.ExactTotal += bs.ExactCount
			bm.FuzzyTotal += bs.FuzzyCount
			bm.PromptsWithMention++
			if bs.FirstMention != nil {
				offsets = append(offsets, *bs.FirstMention)
			}
		}
		bm.MentionRate = float64(bm.PromptsWithMention) / float64(out.PromptCount)
		if len(offsets) > 0 {
			// Integer sum keeps the mean bit-identical under permutation.
			sort.Ints(offsets)
			sum := 0
			for _, o := range offsets {
				sum += o
			}
			avg := float64(sum) / float64(len(offsets))
			med := median(offsets)
			bm.AvgFirstOffset = &avg
			bm.MedianFirstOffset = &med
		}
		out.ByBrand[name] = bm
	}
	return out
}

// median expects a sorted slice.
func median(sorted []int) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// ShareOfVoice is the ratio of the target brand's mentions to all tracked
// mentions in the batch. Zero when nothing was mentioned.
func ShareOfVoice(bm BatchMetrics, target string) float64 {
	total := 0
	for _, m := range bm.ByBrand {
		total += m.TotalMentions
	}
	if total == 0 {
		return 0
	}
	return float64(bm.ByBrand[target].TotalMentions) / float64(total)
}

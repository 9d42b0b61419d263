package topicbrief

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dailybrief/internal/core"
)

var (
	idCitationPattern   = regexp.MustCompile(`\(id:([0-9,\s]+)\)`)
	bareCitationPattern = regexp.MustCompile(`\(([0-9,\s]+)\)`)
)

// ExtractCitedIDs collects content item IDs cited in a summary, in first
// occurrence order, dropping duplicates. Both (id:12, 34) and bare (12, 34)
// forms are recognized; four-digit numbers in the year range are skipped so
// prose like "(2026)" never becomes a citation.
func ExtractCitedIDs(summary string) []int64 {
	var cited []int64
	seen := make(map[int64]bool)

	collect := func(pattern *regexp.Regexp) {
		for _, match := range pattern.FindAllStringSubmatch(summary, -1) {
			for _, part := range strings.Split(match[1], ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil {
					continue
				}
				if id >= 1900 && id <= 2099 {
					continue
				}
				if !seen[id] {
					cited = append(cited, id)
					seen[id] = true
				}
			}
		}
	}
	collect(idCitationPattern)
	collect(bareCitationPattern)
	return cited
}

// BuildReferences resolves cited IDs against the candidate set, taking key
// points from the model's own references where available. IDs outside the
// candidate set are dropped.
func BuildReferences(citedIDs []int64, modelRefs []core.ContentReference, items []core.BriefCandidate) []core.ContentReference {
	allowed := make(map[int64]core.ContentItem, len(items))
	for _, c := range items {
		allowed[c.Item.ID] = c.Item
	}
	refByID := make(map[int64]core.ContentReference, len(modelRefs))
	for _, ref := range modelRefs {
		refByID[ref.ContentItemID] = ref
	}

	var refs []core.ContentReference
	for _, id := range citedIDs {
		item, ok := allowed[id]
		if !ok {
			continue
		}
		keyPoint := refByID[id].KeyPoint
		if keyPoint == "" {
			keyPoint = "Referenced in brief."
		}
		refs = append(refs, core.ContentReference{
			ContentItemID: id,
			Title:         item.Title,
			URL:           item.URL,
			KeyPoint:      keyPoint,
		})
	}
	return refs
}

// RenumberCitations rewrites (id:12, 34) and bare (12, 34) citations in the
// summary to numbered markdown links like [[1]](url), where the number is
// the reference's 1-based position. Citations that resolve to no reference
// are left untouched.
func RenumberCitations(summary string, refs []core.ContentReference) string {
	idToNumber := make(map[int64]int, len(refs))
	idToURL := make(map[int64]string, len(refs))
	for i, ref := range refs {
		idToNumber[ref.ContentItemID] = i + 1
		idToURL[ref.ContentItemID] = ref.URL
	}

	replace := func(match string, pattern *regexp.Regexp) string {
		sub := pattern.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		var links strings.Builder
		for _, part := range strings.Split(sub[1], ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				continue
			}
			if id >= 1900 && id <= 2099 {
				continue
			}
			if n, ok := idToNumber[id]; ok {
				links.WriteString(fmt.Sprintf("[[%d]](%s)", n, idToURL[id]))
			}
		}
		if links.Len() == 0 {
			return match
		}
		return links.String()
	}

	summary = idCitationPattern.ReplaceAllStringFunc(summary, func(m string) string {
		return replace(m, idCitationPattern)
	})
	summary = bareCitationPattern.ReplaceAllStringFunc(summary, func(m string) string {
		return replace(m, bareCitationPattern)
	})
	return summary
}

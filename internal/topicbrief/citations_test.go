package topicbrief

import (
	"reflect"
	"strings"
	"testing"

	"dailybrief/internal/core"
)

func TestExtractCitedIDs(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    []int64
	}{
		{
			name:    "id form single",
			summary: "Big launch happened (id:42).",
			want:    []int64{42},
		},
		{
			name:    "id form multiple",
			summary: "Two sources agree (id:42, 7).",
			want:    []int64{42, 7},
		},
		{
			name:    "bare form",
			summary: "Coverage expanded (12, 34).",
			want:    []int64{12, 34},
		},
		{
			name:    "mixed forms keep id-form first",
			summary: "First (id:5), later (9).",
			want:    []int64{5, 9},
		},
		{
			name:    "duplicates dropped",
			summary: "(id:3) and again (id:3, 4)",
			want:    []int64{3, 4},
		},
		{
			name:    "years filtered",
			summary: "Reported in (2026) and (id:2025, 8).",
			want:    []int64{8},
		},
		{
			name:    "no citations",
			summary: "Nothing to cite here.",
			want:    nil,
		},
		{
			name:    "non-numeric parens ignored",
			summary: "Something (notable) happened (id:abc).",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitedIDs(tt.summary)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCitedIDs(%q) = %v, want %v", tt.summary, got, tt.want)
			}
		})
	}
}

func TestBuildReferences(t *testing.T) {
	items := []core.BriefCandidate{
		{Item: core.ContentItem{ID: 1, Title: "First", URL: "https://a.example/1"}},
		{Item: core.ContentItem{ID: 2, Title: "Second", URL: "https://a.example/2"}},
	}
	modelRefs := []core.ContentReference{
		{ContentItemID: 1, KeyPoint: "Key fact from item one."},
	}

	refs := BuildReferences([]int64{1, 2, 99}, modelRefs, items)
	if len(refs) != 2 {
		t.Fatalf("BuildReferences() returned %d refs, want 2", len(refs))
	}
	if refs[0].ContentItemID != 1 || refs[0].KeyPoint != "Key fact from item one." {
		t.Errorf("ref[0] = %+v, want model key point for item 1", refs[0])
	}
	if refs[0].Title != "First" || refs[0].URL != "https://a.example/1" {
		t.Errorf("ref[0] should carry the item title and URL, got %+v", refs[0])
	}
	if refs[1].ContentItemID != 2 || refs[1].KeyPoint != "Referenced in brief." {
		t.Errorf("ref[1] = %+v, want fallback key point for item 2", refs[1])
	}
}

func TestRenumberCitations(t *testing.T) {
	refs := []core.ContentReference{
		{ContentItemID: 42, URL: "https://a.example/42"},
		{ContentItemID: 7, URL: "https://a.example/7"},
	}

	tests := []struct {
		name    string
		summary string
		want    string
	}{
		{
			name:    "single id citation",
			summary: "A launch (id:42).",
			want:    "A launch [[1]](https://a.example/42).",
		},
		{
			name:    "multi id citation concatenates links",
			summary: "Both agree (id:42, 7).",
			want:    "Both agree [[1]](https://a.example/42)[[2]](https://a.example/7).",
		},
		{
			name:    "bare citation",
			summary: "Also covered (7).",
			want:    "Also covered [[2]](https://a.example/7).",
		},
		{
			name:    "unknown id left untouched",
			summary: "Unclear source (id:99).",
			want:    "Unclear source (id:99).",
		},
		{
			name:    "year left untouched",
			summary: "Back in (2024) things differed.",
			want:    "Back in (2024) things differed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenumberCitations(tt.summary, refs)
			if got != tt.want {
				t.Errorf("RenumberCitations(%q) = %q, want %q", tt.summary, got, tt.want)
			}
		})
	}
}

func TestRenumberCitations_NoRefs(t *testing.T) {
	summary := "Something happened (id:12)."
	if got := RenumberCitations(summary, nil); got != summary {
		t.Errorf("RenumberCitations() with no refs = %q, want original", got)
	}
}

func TestRenumberCitations_NumbersFollowReferenceOrder(t *testing.T) {
	refs := []core.ContentReference{
		{ContentItemID: 9, URL: "https://a.example/9"},
		{ContentItemID: 3, URL: "https://a.example/3"},
		{ContentItemID: 5, URL: "https://a.example/5"},
	}
	got := RenumberCitations("(id:5) then (id:9) then (id:3)", refs)
	if !strings.Contains(got, "[[3]](https://a.example/5)") ||
		!strings.Contains(got, "[[1]](https://a.example/9)") ||
		!strings.Contains(got, "[[2]](https://a.example/3)") {
		t.Errorf("numbers should follow reference list positions, got %q", got)
	}
}

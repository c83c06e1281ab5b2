//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForType(t *testing.T) {
	tests := []struct {
		recordType RecordType
		want       Category
		ok         bool
	}{
		{TypeJob, CategoryLatestJobs, true},
		{TypeUpcomingJob, CategoryUpcomingJobs, true},
		{TypeResult, CategoryResult, true},
		{TypeAdmitCard, CategoryAdmitCard, true},
		{TypeAnswerKey, CategoryAnswerKey, true},
		{TypeSyllabus, CategorySyllabus, true},
		{TypeAdmission, CategoryAdmission, true},
		{TypeImportantDocument, CategoryImportantDocuments, true},
		{"latest_jobs", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.recordType), func(t *testing.T) {
			got, ok := CategoryForType(tt.recordType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategories_Disjoint(t *testing.T) {
	categories := Categories()
	require.Len(t, categories, 8)

	seen := make(map[Category]bool)
	for _, c := range categories {
		assert.False(t, seen[c], "duplicate partition %s", c)
		seen[c] = true
		assert.True(t, IsCategory(c))
	}
	assert.False(t, IsCategory("archived_content"))
}

func TestDefaultArchiveRules_CoverEveryCategory(t *testing.T) {
	rules := DefaultArchiveRules()
	require.Len(t, rules, len(Categories()))

	assert.Equal(t, ArchiveRule{DateField: "last_date", GraceDays: 0}, rules[CategoryLatestJobs])
	assert.Equal(t, ArchiveRule{DateField: "last_date", GraceDays: 0}, rules[CategoryAdmission])
	assert.Equal(t, 7, rules[CategoryAdmitCard].GraceDays)
	assert.Equal(t, "details.admit_card_summary.Exam Date", rules[CategoryAdmitCard].DateField)
	assert.Equal(t, 15, rules[CategoryAnswerKey].GraceDays)
	assert.Equal(t, 90, rules[CategoryResult].GraceDays)
	assert.Equal(t, 365, rules[CategorySyllabus].GraceDays)
	assert.Equal(t, 365, rules[CategoryUpcomingJobs].GraceDays)
	assert.Equal(t, 180, rules[CategoryImportantDocuments].GraceDays)
}

func TestCategorySpecs_ReturnsCopy(t *testing.T) {
	specs := CategorySpecs()
	specs[0].Category = "mutated"

	got, ok := CategoryForType(TypeJob)
	require.True(t, ok)
	assert.Equal(t, CategoryLatestJobs, got)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple title", "SSC CGL Tier 1 Result 2025", "ssc-cgl-tier-1-result-2025"},
		{"punctuation runs", "RRB ALP: Stage-2 / Admit Card!!", "rrb-alp-stage-2-admit-card"},
		{"leading and trailing noise", "  --Hello World--  ", "hello-world"},
		{"empty", "", ""},
		{"only symbols", "%%%", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}

func TestSlugify_LengthCap(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), MaxSlugLength)
	assert.NotEqual(t, byte('-'), slug[len(slug)-1])
}

func TestCluster_URLsAndLead(t *testing.T) {
	c := Cluster{Articles: []Article{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: "https://example.com/b"},
	}}
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, c.URLs())
	assert.Equal(t, "A", c.Lead().Title)
	assert.Equal(t, Article{}, Cluster{}.Lead())
}

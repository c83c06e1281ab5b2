// Package types provides type definitions for structured data used throughout the rojgar pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RecordType is the announcement classification produced by the synthesis service.
type RecordType string

// Record types understood by the pipeline.
const (
	TypeJob               RecordType = "job"
	TypeUpcomingJob       RecordType = "upcoming_job"
	TypeResult            RecordType = "result"
	TypeAdmitCard         RecordType = "admit_card"
	TypeAnswerKey         RecordType = "answer_key"
	TypeSyllabus          RecordType = "syllabus"
	TypeAdmission         RecordType = "admission"
	TypeImportantDocument RecordType = "important_document"
)

// Category is the name of a store partition.
type Category string

// Store partitions. These names are also the top-level keys of the persisted document.
const (
	CategoryLatestJobs         Category = "latest_jobs"
	CategoryUpcomingJobs       Category = "upcoming_jobs"
	CategoryResult             Category = "result"
	CategoryAdmitCard          Category = "admit_card"
	CategoryAnswerKey          Category = "answer_key"
	CategorySyllabus           Category = "syllabus"
	CategoryAdmission          Category = "admission"
	CategoryImportantDocuments Category = "important_documents"
)

// ArchiveRule says where a record's governing date lives and how long it stays
// active after that date.
type ArchiveRule struct {
	DateField string // dotted path into the record, e.g. "details.admit_card_summary.Exam Date"
	GraceDays int
}

// CategorySpec binds a record type to its partition and archival rule.
type CategorySpec struct {
	Type     RecordType
	Category Category
	Archive  ArchiveRule
}

// categoryTable is the single source of truth for routing and archival.
// Order here is the order partitions are written and reported in.
var categoryTable = []CategorySpec{
	{TypeJob, CategoryLatestJobs, ArchiveRule{DateField: "last_date", GraceDays: 0}},
	{TypeResult, CategoryResult, ArchiveRule{DateField: "creation_date", GraceDays: 90}},
	{TypeAdmitCard, CategoryAdmitCard, ArchiveRule{DateField: "details.admit_card_summary.Exam Date", GraceDays: 7}},
	{TypeAnswerKey, CategoryAnswerKey, ArchiveRule{DateField: "details.answer_key_summary.Objection Window", GraceDays: 15}},
	{TypeSyllabus, CategorySyllabus, ArchiveRule{DateField: "creation_date", GraceDays: 365}},
	{TypeAdmission, CategoryAdmission, ArchiveRule{DateField: "last_date", GraceDays: 0}},
	{TypeUpcomingJob, CategoryUpcomingJobs, ArchiveRule{DateField: "creation_date", GraceDays: 365}},
	{TypeImportantDocument, CategoryImportantDocuments, ArchiveRule{DateField: "creation_date", GraceDays: 180}},
}

// CategorySpecs returns a copy of the category table.
func CategorySpecs() []CategorySpec {
	out := make([]CategorySpec, len(categoryTable))
	copy(out, categoryTable)
	return out
}

// Categories returns all partition names in table order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable))
	for _, spec := range categoryTable {
		out = append(out, spec.Category)
	}
	return out
}

// RecordTypes returns all known record types in table order.
func RecordTypes() []RecordType {
	out := make([]RecordType, 0, len(categoryTable))
	for _, spec := range categoryTable {
		out = append(out, spec.Type)
	}
	return out
}

// CategoryForType routes a record type to its partition.
// The second return value is false for types outside the enumeration.
func CategoryForType(t RecordType) (Category, bool) {
	for _, spec := range categoryTable {
		if spec.Type == t {
			return spec.Category, true
		}
	}
	return "", false
}

// IsCategory reports whether c names one of the eight partitions.
func IsCategory(c Category) bool {
	for _, spec := range categoryTable {
		if spec.Category == c {
			return true
		}
	}
	return false
}

// DefaultArchiveRules returns the archival rule for every partition.
func DefaultArchiveRules() map[Category]ArchiveRule {
	rules := make(map[Category]ArchiveRule, len(categoryTable))
	for _, spec := range categoryTable {
		rules[spec.Category] = spec.Archive
	}
	return rules
}

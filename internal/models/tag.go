package models

import "strings"

// TagStatus is the normalized lifecycle state of a taxonomy tag. The
// repository historically exposed both a status enum and a legacy excluded
// flag; both shapes fold into this one enumeration at the data-access
// boundary so pipeline logic never branches on schema version.
type TagStatus string

const (
	TagStatusActive   TagStatus = "active"
	TagStatusProposed TagStatus = "proposed"
	TagStatusExcluded TagStatus = "excluded"
)

// Tag represents a taxonomy entry in the content repository
type Tag struct {
	ID     string    `json:"documentId"`
	Name   string    `json:"name"`
	Status TagStatus `json:"tagStatus,omitempty"`
}

// Assignable reports whether the tag is offered to the generation step as a
// choice. Active tags are assignable; a tag with no recorded status counts as
// active. Proposed tags are not offered until curated, and excluded tags are
// never offered.
func (t Tag) Assignable() bool {
	return t.Status == TagStatusActive || t.Status == ""
}

// Excluded reports whether the tag must never be assigned, even when a
// generation step names it by exact string.
func (t Tag) Excluded() bool {
	return t.Status == TagStatusExcluded
}

// NormalizeTagStatus folds the repository's two historical shapes (a status
// string and a legacy boolean excluded flag) into one TagStatus value.
func NormalizeTagStatus(status string, legacyExcluded bool) TagStatus {
	switch TagStatus(strings.ToLower(strings.TrimSpace(status))) {
	case TagStatusActive:
		return TagStatusActive
	case TagStatusProposed:
		return TagStatusProposed
	case TagStatusExcluded:
		return TagStatusExcluded
	}
	if legacyExcluded {
		return TagStatusExcluded
	}
	return TagStatusActive
}

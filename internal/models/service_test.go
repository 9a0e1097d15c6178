package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceDraft_Compact(t *testing.T) {
	draft := ServiceDraft{
		"slug":          "demo-app",
		"name":          "Demo App",
		"url":           "",
		"description":   "## Demo",
		"abstract":      nil,
		"tags":          []string{},
		"youtube_video": "abc123",
	}

	compacted := draft.Compact()

	assert.Equal(t, ServiceDraft{
		"slug":          "demo-app",
		"name":          "Demo App",
		"description":   "## Demo",
		"youtube_video": "abc123",
	}, compacted)

	// Original draft is untouched
	assert.Contains(t, draft, "url")
	assert.Contains(t, draft, "tags")
}

func TestServiceDraft_CompactKeepsNonEmptyCollections(t *testing.T) {
	draft := ServiceDraft{
		"tags": []string{"tag-1", "tag-2"},
	}

	compacted := draft.Compact()
	assert.Equal(t, []string{"tag-1", "tag-2"}, compacted["tags"])
}

func TestServiceDraft_SetText(t *testing.T) {
	draft := ServiceDraft{}
	draft.SetText("description", "")
	draft.SetText("abstract", "A short sentence.")

	assert.NotContains(t, draft, "description")
	assert.Equal(t, "A short sentence.", draft["abstract"])
}

func TestServiceRecord_TagIDs(t *testing.T) {
	record := &ServiceRecord{
		Tags: []Tag{{ID: "t1", Name: "AI"}, {ID: "t2", Name: "Design"}},
	}
	assert.Equal(t, []string{"t1", "t2"}, record.TagIDs())

	empty := &ServiceRecord{}
	assert.Nil(t, empty.TagIDs())
}

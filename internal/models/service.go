package models

// ServiceRecord represents a catalog service entry as stored in the content
// repository. The repository owns this data; the pipelines never hold a copy
// across runs.
type ServiceRecord struct {
	ID            string   `json:"documentId"`
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	URL           string   `json:"url,omitempty"`
	Description   string   `json:"description,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	Functionality string   `json:"functionality,omitempty"`
	Shortfacts    string   `json:"shortfacts,omitempty"`
	Pricing       string   `json:"pricing,omitempty"`
	Tags          []Tag    `json:"tags,omitempty"`
	YouTubeVideo  string   `json:"youtube_video,omitempty"`
	YouTubeTitle  string   `json:"youtube_title,omitempty"`
	Top           *bool    `json:"top,omitempty"`
	PublishDate   string   `json:"publishdate,omitempty"`
	ReviewCount   *int     `json:"reviewCount,omitempty"`
	AverageRating *float64 `json:"averageRating,omitempty"`
}

// TagIDs returns the tag relation ids of the record, in order.
func (r *ServiceRecord) TagIDs() []string {
	if len(r.Tags) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// ServiceDraft is the ephemeral working record both pipelines build before a
// write. Keys use the repository field names.
type ServiceDraft map[string]interface{}

// Set stores a value under the given field name.
func (d ServiceDraft) Set(field string, value interface{}) {
	d[field] = value
}

// SetText stores a text field only when the value is non-empty.
func (d ServiceDraft) SetText(field, value string) {
	if value != "" {
		d[field] = value
	}
}

// Compact returns a copy of the draft with every empty value removed so that
// partial runs never overwrite prior good data with emptiness. A value is
// empty when it is nil, an empty string, or an empty slice.
func (d ServiceDraft) Compact() ServiceDraft {
	compacted := make(ServiceDraft, len(d))
	for field, value := range d {
		if isEmptyValue(value) {
			continue
		}
		compacted[field] = value
	}
	return compacted
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

package catalog

// tagNode is a taxonomy entry as the GraphQL endpoint returns it. The
// repository carries both a status enum and a legacy excluded flag; both are
// folded into models.TagStatus at this boundary.
type tagNode struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	TagStatus  string `json:"tag_status"`
	Excluded   bool   `json:"excluded"`
}

// serviceNode is a service entry as the GraphQL endpoint returns it.
type serviceNode struct {
	DocumentID    string    `json:"documentId"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Description   string    `json:"description"`
	Abstract      string    `json:"abstract"`
	Functionality string    `json:"functionality"`
	Shortfacts    string    `json:"shortfacts"`
	Pricing       string    `json:"pricing"`
	Tags          []tagNode `json:"tags"`
	YouTubeVideo  string    `json:"youtube_video"`
	YouTubeTitle  string    `json:"youtube_title"`
	Top           *bool     `json:"top"`
	PublishDate   string    `json:"publishdate"`
	ReviewCount   *int      `json:"reviewCount"`
	AverageRating *float64  `json:"averageRating"`
}

// queueNode is a queue entry as the GraphQL endpoint returns it. Requested
// fields are stored as one comma-separated string.
type queueNode struct {
	DocumentID string `json:"documentId"`
	Slug       string `json:"slug"`
	Fields     string `json:"fields"`
	Status     string `json:"queuestatus"`
}

// restDocument is the REST write envelope shared by all collections.
type restDocument struct {
	Data interface{} `json:"data"`
}

// restDocumentResponse carries the identity of a written document.
type restDocumentResponse struct {
	Data struct {
		DocumentID string `json:"documentId"`
	} `json:"data"`
}

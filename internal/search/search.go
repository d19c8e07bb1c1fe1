package search

// CommentRecord is the data indexed per comment.
type CommentRecord struct {
	ID           string `json:"id"`
	Body         string `json:"body"`
	ItemID       string `json:"itemId"`
	AnnotationID string `json:"annotationId"`
	AuthorName   string `json:"authorName"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterItemID string
	Limit        int
}

// Result is a single hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	Snippet      string `json:"snippet"`
	ItemID       string `json:"itemId"`
	AnnotationID string `json:"annotationId"`
	AuthorName   string `json:"authorName"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a comment search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
}

// Indexer keeps the comment index in step with store mutations.
type Indexer interface {
	IndexComment(record CommentRecord) error
	DeleteComment(id string) error
}

package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPost   ResultType = "post"
	ResultBrand  ResultType = "brand"
	ResultDomain ResultType = "domain"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	BrandID string     `json:"brandId,omitempty"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterBrandID string
	Limit         int
	Offset        int
	// PublishedOnly hides draft and archived posts; set for callers
	// without write access.
	PublishedOnly bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPost(p PostRecord) error
	IndexBrand(b BrandRecord) error
	IndexDomain(d DomainRecord) error
	DeletePost(id string) error
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	BrandID string `json:"brandId"`
	Status  string `json:"status"`
}

// BrandRecord is the data we index for a brand.
type BrandRecord struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Personality string `json:"personality"`
	Tier        int    `json:"tier"`
}

// DomainRecord is the data we index for a domain.
type DomainRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

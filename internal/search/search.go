package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask    ResultType = "task"
	ResultComment ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	TaskID  int64      `json:"taskId"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterTaskID int64      // 0 = all tasks
	Limit        int
	Offset       int
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
	IndexTask(t TaskRecord) error
	IndexComment(c CommentRecord) error
	DeleteComment(id int64) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedBy string `json:"createdBy"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID     int64  `json:"id"`
	TaskID int64  `json:"taskId"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

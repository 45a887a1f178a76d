package models

// Mode selects the retrieval strategy the engine uses for a query.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeNaive  Mode = "naive"
	ModeLocal  Mode = "local"
)

// ValidMode reports whether m is one of the supported query modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeHybrid, ModeNaive, ModeLocal:
		return true
	}
	return false
}

// QueryRequest is one retrieval request. Query must be non-empty after
// trimming by the time it reaches the engine.
type QueryRequest struct {
	Query string `json:"query"`
	Mode  Mode   `json:"mode,omitempty"`
	VLM   bool   `json:"vlm,omitempty"`
}

// Source is one retrieved piece of evidence backing an answer. Embedding is
// a plain ordered list; engines that return native numeric arrays have them
// normalized before the source reaches a caller.
type Source struct {
	DocID     string    `json:"doc_id"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Timing is the per-call duration breakdown, in seconds.
type Timing struct {
	ParseDuration float64 `json:"parse_duration"`
	QueryDuration float64 `json:"query_duration"`
	TotalDuration float64 `json:"total_duration"`
}

// QueryResult is the response for one query. Created per call and discarded
// after serialization.
type QueryResult struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence *float64 `json:"confidence,omitempty"`
	Mode       Mode     `json:"mode"`
	Status     string   `json:"status"`
	Timing     Timing   `json:"timing"`
}

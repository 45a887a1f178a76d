package engine

import "errors"

var (
	// ErrEngineInit means model-function binding or engine construction
	// failed. The factory never caches it; the next Get retries.
	ErrEngineInit = errors.New("engine initialization failed")

	// ErrParse means the parser rejected a document.
	ErrParse = errors.New("document parse failed")

	// ErrInsert means the engine rejected a bulk insert.
	ErrInsert = errors.New("chunk insert failed")

	// ErrQueryExecution means a query failed for a reason other than the
	// vision sub-path.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrVisionPath means the vision/multimodal sub-path failed. The query
	// orchestrator retries once in naive mode before surfacing it.
	ErrVisionPath = errors.New("vision path failed")
)

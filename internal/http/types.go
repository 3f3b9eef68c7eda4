package http

import (
	"github.com/fyrsmithlabs/procrag/internal/answer"
	"github.com/fyrsmithlabs/procrag/internal/catalog"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query      string   `json:"query"`
	Steps      string   `json:"steps,omitempty"`
	Categories []string `json:"categories,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
}

// UnitRef identifies one retrieved unit.
type UnitRef struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Index    int    `json:"index"`
	Category string `json:"category"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Query  string        `json:"query"`
	TopK   int           `json:"top_k"`
	Count  int           `json:"count"`
	Units  []UnitRef     `json:"units"`
	Answer answer.Answer `json:"answer"`
}

// DocumentsResponse is the response body for GET /api/v1/documents.
type DocumentsResponse struct {
	Documents []catalog.Entry `json:"documents"`
	Count     int             `json:"count"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Documents int    `json:"documents"`
	Units     int    `json:"units"`
}

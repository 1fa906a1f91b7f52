// File: internal/server/types.go
package server

import "github.com/xkilldash9x/amp-optimizer/internal/sanitize"

// Response is the JSON envelope of every non-HTML response.
type Response struct {
	Status string      `json:"status"` // "success" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// BlockRequest is the body of POST /api/v1/blocks.
type BlockRequest struct {
	sanitize.Block
	// Attachments supplies media metadata keyed by attachment id.
	Attachments sanitize.Attachments `json:"attachments,omitempty"`
}

// BlockResponse carries the rewritten block markup.
type BlockResponse struct {
	HTML string `json:"html"`
}

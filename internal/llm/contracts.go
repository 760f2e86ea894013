package llm

import (
	"context"
	"encoding/json"
)

// Image is one page image attached to a request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request asks for the given fields from one document. Text is used when
// non-empty, otherwise Images.
type Request struct {
	FileName string
	Fields   []string
	Text     string
	Images   []Image
}

// Response is the raw reply of one extraction call. Text is the provider's
// primary text; Envelope is the full provider payload for the fallbacks.
type Response struct {
	Text     string          `json:"text,omitempty"`
	Envelope json.RawMessage `json:"envelope,omitempty"`
	Model    string          `json:"model,omitempty"`
}

// FieldExtractor is the interface our pipeline depends on.
// Implementations send exactly one request per call and never retry.
type FieldExtractor interface {
	Extract(ctx context.Context, req Request) (Response, error)
}

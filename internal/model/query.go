package model

import (
	"encoding/json"
	"fmt"
)

const (
	ContextTypeQdrant       = "qdrant"
	ContextTypeUserSelected = "user_selected"
)

// QdrantContext requests retrieval from the vector store with optional
// payload filters and a chunk budget.
type QdrantContext struct {
	Filters   map[string]string `json:"filters,omitempty"`
	MaxChunks int               `json:"max_chunks,omitempty"`
}

// UserSelectedContext supplies the exact text the answer must be grounded
// in, bypassing retrieval.
type UserSelectedContext struct {
	Content   string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

// QueryContext is the tagged union behind the request's "context" object.
// Exactly one branch is set after a successful unmarshal.
type QueryContext struct {
	Qdrant       *QdrantContext
	UserSelected *UserSelectedContext
}

func (qc *QueryContext) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case "", ContextTypeQdrant:
		var ctx QdrantContext
		if err := json.Unmarshal(data, &ctx); err != nil {
			return err
		}
		qc.Qdrant = &ctx
		qc.UserSelected = nil
	case ContextTypeUserSelected:
		var ctx UserSelectedContext
		if err := json.Unmarshal(data, &ctx); err != nil {
			return err
		}
		qc.UserSelected = &ctx
		qc.Qdrant = nil
	default:
		return fmt.Errorf("unsupported context type: %s", head.Type)
	}
	return nil
}

func (qc QueryContext) MarshalJSON() ([]byte, error) {
	switch {
	case qc.UserSelected != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*UserSelectedContext
		}{ContextTypeUserSelected, qc.UserSelected})
	case qc.Qdrant != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*QdrantContext
		}{ContextTypeQdrant, qc.Qdrant})
	default:
		return []byte("null"), nil
	}
}

type QueryRequest struct {
	Query     string        `json:"query"`
	Context   *QueryContext `json:"context,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string            `json:"answer"`
	Citations []SourceReference `json:"citations"`
	SessionID string            `json:"session_id,omitempty"`
}

type SelectedTextRequest struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	SessionID string `json:"session_id,omitempty"`
}

type SelectedTextResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	ProcessedTextID string `json:"processed_text_id,omitempty"`
}

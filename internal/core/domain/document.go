package domain

import "time"

// DocumentMeta is the subset of corpus document metadata the query path needs.
type DocumentMeta struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Title         string     `json:"title,omitempty"`
	DocumentType  string     `json:"document_type,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	RetrievedAt   *time.Time `json:"retrieved_at,omitempty"`
}

package stock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Body       []byte
}

// Outcome labels how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeProductNotFound Outcome = "product_not_found"
	OutcomeOutOfStock      Outcome = "out_of_stock"
	OutcomeNotified        Outcome = "notified"
	OutcomeFailed          Outcome = "failed"
)

// Result summarizes one run for the invoking harness.
type Result struct {
	RunID      string
	Outcome    Outcome
	InStock    map[string]string
	Message    string
	MessageID  string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in an error.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// VariantID is an opaque variant identifier. Storefronts emit it as either a
// JSON string or a JSON number; numbers keep their literal text.
type VariantID string

// UnmarshalJSON accepts string and number forms.
func (id *VariantID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty variant id")
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode variant id: %w", err)
		}
		*id = VariantID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode variant id: %w", err)
		}
		*id = VariantID(n.String())
	default:
		return fmt.Errorf("variant id must be a string or number, got %s", data)
	}
	return nil
}

// Variant is one purchasable configuration of a product.
type Variant struct {
	ID VariantID `json:"id"`
}

type productDocument struct {
	Product *struct {
		Variants []Variant `json:"variants"`
	} `json:"product"`
}

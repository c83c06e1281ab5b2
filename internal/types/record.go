package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar date format used for last_date and creation_date.
const DateLayout = "2006-01-02"

// Record is one normalized announcement. The envelope fields are common to every
// type; Details carries the type-specific payload and is checked against the
// per-type JSON schema before a record is accepted. Top-level keys outside the
// envelope are kept verbatim in Extra and written back on encode.
type Record struct {
	Type         RecordType     `json:"type" validate:"required,oneof=job upcoming_job result admit_card answer_key syllabus admission important_document"`
	ID           string         `json:"id" validate:"required,max=80"`
	Title        string         `json:"title" validate:"required"`
	LastDate     *string        `json:"last_date"`
	CreationDate string         `json:"creation_date" validate:"required,datetime=2006-01-02"`
	New          bool           `json:"new"`
	Details      map[string]any `json:"details" validate:"required"`

	Extra map[string]json.RawMessage `json:"-"`
}

// envelope has Record's fields without its JSON methods.
type envelope Record

var envelopeKeys = []string{"type", "id", "title", "last_date", "creation_date", "new", "details"}

func isEnvelopeKey(key string) bool {
	for _, k := range envelopeKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes the envelope and keeps every other top-level key in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	env.Extra = nil
	for key, value := range raw {
		if isEnvelopeKey(key) {
			continue
		}
		if env.Extra == nil {
			env.Extra = make(map[string]json.RawMessage)
		}
		env.Extra[key] = value
	}
	*r = Record(env)
	return nil
}

// MarshalJSON encodes the envelope merged with Extra. Envelope fields win on conflict.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := encodeJSON(envelope(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(fields)+len(r.Extra))
	for key, value := range r.Extra {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return encodeJSON(merged)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Validate validates the Record envelope using the validator.
func (r *Record) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Fields returns the record as a generic keyed mapping, the shape dotted-path
// lookups walk. Details is shared, not copied.
func (r *Record) Fields() map[string]any {
	var lastDate any
	if r.LastDate != nil {
		lastDate = *r.LastDate
	}
	return map[string]any{
		"type":          string(r.Type),
		"id":            r.ID,
		"title":         r.Title,
		"last_date":     lastDate,
		"creation_date": r.CreationDate,
		"new":           r.New,
		"details":       r.Details,
	}
}

// ImportantLinks returns the label→URL map from Details, skipping non-string values.
func (r *Record) ImportantLinks() map[string]string {
	links := make(map[string]string)
	raw, ok := r.Details["important_links"].(map[string]any)
	if !ok {
		return links
	}
	for label, v := range raw {
		if s, ok := v.(string); ok {
			links[label] = s
		}
	}
	return links
}

// Package synthesis turns a consolidated cluster text into one validated record
// using an LLM.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/dates"
	"github.com/jonathan/rojgar-pipeline/internal/llm"
	"github.com/jonathan/rojgar-pipeline/internal/prompts"
	"github.com/jonathan/rojgar-pipeline/internal/schemas"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Result is the outcome of one synthesis call. Raw is kept even when the call
// fails after the model answered, so the response can be archived.
type Result struct {
	Record   types.Record
	Category types.Category
	Raw      string
}

// Config configures a Service.
type Config struct {
	Tier     llm.ModelTier
	Location *time.Location
	Clock    func() time.Time
}

// Service synthesizes records with an llm.Client.
type Service struct {
	client llm.Client
	tier   llm.ModelTier
	loc    *time.Location
	clock  func() time.Time
	logger *zap.Logger
}

// New returns a Service. Zero Config fields take defaults: lite tier, UTC, time.Now.
func New(client llm.Client, cfg Config, logger *zap.Logger) *Service {
	if cfg.Tier == "" {
		cfg.Tier = llm.TierLite
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		tier:   cfg.Tier,
		loc:    cfg.Location,
		clock:  cfg.Clock,
		logger: logger.Named("synthesis"),
	}
}

// Today returns the service's current calendar date.
func (s *Service) Today() time.Time {
	return dates.Civil(s.clock().In(s.loc))
}

// BuildPrompt renders the synthesis prompt around blob.
func BuildPrompt(blob string) (string, error) {
	tmpl, err := prompts.Get(prompts.SynthesisFile, prompts.SynthesizeRecord)
	if err != nil {
		return "", err
	}
	return prompts.Format(tmpl, map[string]string{prompts.ContentPlaceholder: blob}), nil
}

// Synthesize asks the model for a record describing blob, then normalizes and
// validates it. Errors are *Error values carrying one of the Err* kinds.
func (s *Service) Synthesize(ctx context.Context, blob string) (Result, error) {
	prompt, err := BuildPrompt(blob)
	if err != nil {
		return Result{}, newError(ErrGeneration, "failed to build prompt", err)
	}

	raw, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return Result{}, newError(ErrGeneration, fmt.Sprintf("model %s", s.client.GetModel(s.tier)), err)
	}

	rec, category, err := Parse(raw, s.Today())
	if err != nil {
		s.logger.Debug("rejected model response", zap.Int("bytes", len(raw)), zap.Error(err))
		return Result{Raw: raw}, err
	}
	return Result{Record: rec, Category: category, Raw: raw}, nil
}

// Parse extracts the record object from a raw model response, stamps
// creation_date with today, normalizes the id and validates the result.
func Parse(raw string, today time.Time) (types.Record, types.Category, error) {
	object := llm.ExtractJSONObject(raw)
	if object == "" {
		return types.Record{}, "", newError(ErrNoJSON, "response has no balanced {...}", nil)
	}

	var doc map[string]any
	decoder := json.NewDecoder(strings.NewReader(object))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return types.Record{}, "", newError(ErrMalformed, "failed to decode object", err)
	}
	if doc == nil {
		return types.Record{}, "", newError(ErrMalformed, "object is null", nil)
	}

	rawID, _ := doc["id"].(string)
	id := types.Slugify(rawID)
	if id == "" {
		return types.Record{}, "", newError(ErrMissingID, fmt.Sprintf("id %q", rawID), nil)
	}
	doc["id"] = id

	rawType, _ := doc["type"].(string)
	recordType := types.RecordType(strings.TrimSpace(rawType))
	category, ok := types.CategoryForType(recordType)
	if !ok {
		return types.Record{}, "", newError(ErrUnroutable, fmt.Sprintf("type %q", rawType), nil)
	}
	doc["type"] = string(recordType)

	doc["creation_date"] = today.Format(types.DateLayout)
	if _, ok := doc["last_date"]; !ok {
		doc["last_date"] = nil
	}
	if _, ok := doc["new"]; !ok {
		doc["new"] = true
	}

	normalized, err := marshal(doc)
	if err != nil {
		return types.Record{}, "", newError(ErrMalformed, "failed to re-encode object", err)
	}
	if err := schemas.ValidateRecord(string(recordType), normalized); err != nil {
		return types.Record{}, "", newError(ErrSchema, string(recordType), err)
	}

	var rec types.Record
	if err := json.Unmarshal(normalized, &rec); err != nil {
		return types.Record{}, "", newError(ErrSchema, "failed to decode record", err)
	}
	if err := rec.Validate(); err != nil {
		return types.Record{}, "", newError(ErrSchema, "envelope", err)
	}
	return rec, category, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

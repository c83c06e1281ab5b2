// Package archive moves expired records from active partitions into the archive.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/rojgar-pipeline/internal/dates"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Rule is the expiry rule of one partition.
type Rule = types.ArchiveRule

// DefaultRules returns the expiry rule of every partition.
func DefaultRules() map[types.Category]Rule {
	return types.DefaultArchiveRules()
}

// Report summarizes one archival run.
type Report struct {
	Total       int                    `json:"total"`
	PerCategory map[types.Category]int `json:"per_category"`
}

// Engine applies expiry rules against a fixed notion of "today".
type Engine struct {
	rules map[types.Category]Rule
	clock func() time.Time
	loc   *time.Location
}

// New returns an Engine. rules is copied; clock defaults to time.Now and loc to UTC.
func New(rules map[types.Category]Rule, clock func() time.Time, loc *time.Location) *Engine {
	copied := make(map[types.Category]Rule, len(rules))
	for c, r := range rules {
		copied[c] = r
	}
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{rules: copied, clock: clock, loc: loc}
}

// Today returns the current calendar date in the engine's location, as midnight UTC.
func (e *Engine) Today() time.Time {
	return dates.Civil(e.clock().In(e.loc))
}

// Expired reports whether rec has passed its grace period as of today. Records
// whose governing date cannot be resolved never expire.
func Expired(rec types.Record, rule Rule, today time.Time) bool {
	governing, ok := dates.ResolvePath(rec.Fields(), rule.DateField)
	if !ok {
		return false
	}
	return governing.AddDate(0, 0, rule.GraceDays).Before(today)
}

// Run returns a new state with every expired record moved to its partition's
// archive. The input state is not modified. Each partition's archived batch keeps
// its original order and is placed ahead of previously archived records.
func (e *Engine) Run(state *store.State) (*store.State, Report) {
	report := Report{PerCategory: make(map[types.Category]int)}
	today := e.Today()
	next := state.Clone()

	for _, category := range types.Categories() {
		rule, ok := e.rules[category]
		if !ok {
			continue
		}
		active := state.Active[category]
		if len(active) == 0 {
			continue
		}

		kept := make([]types.Record, 0, len(active))
		var expired []types.Record
		for _, rec := range active {
			if Expired(rec, rule, today) {
				expired = append(expired, rec)
			} else {
				kept = append(kept, rec)
			}
		}
		if len(expired) == 0 {
			continue
		}

		next.Active[category] = kept
		next.Archived[category] = append(expired, state.Archived[category]...)
		report.PerCategory[category] = len(expired)
		report.Total += len(expired)
	}

	if report.Total == 0 {
		return state, report
	}
	return next, report
}

// RunStore archives the persisted state. The store is written once, and only when
// something was archived.
func (e *Engine) RunStore(ctx context.Context, st *store.Store) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	var report Report
	err := st.Update(func(state *store.State) (*store.State, bool, error) {
		next, r := e.Run(state)
		report = r
		return next, r.Total > 0, nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("archival failed: %w", err)
	}
	return report, nil
}

package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/rojgar-pipeline/internal/archive"
	"github.com/jonathan/rojgar-pipeline/internal/artifacts"
	"github.com/jonathan/rojgar-pipeline/internal/clustering"
	"github.com/jonathan/rojgar-pipeline/internal/db"
	"github.com/jonathan/rojgar-pipeline/internal/ledger"
	"github.com/jonathan/rojgar-pipeline/internal/llm"
	"github.com/jonathan/rojgar-pipeline/internal/publisher"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/synthesis"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

const (
	alpFirst = "RRB ALP Stage 2 admit card released by the Railway Recruitment Board. " +
		"Assistant Loco Pilot CBAT exam scheduled for 25 September 2025. Candidates download the hall ticket " +
		"from the regional website using registration number and date of birth. Exam city slip also available."
	alpSecond = "RRB ALP Stage 2 admit card released by the Railway Recruitment Board. " +
		"Assistant Loco Pilot CBAT exam scheduled for 25 September 2025. Candidates can download the hall ticket " +
		"from the regional website using registration number and date of birth. Exam city slip also available."
	petSyllabus = "UPSSSC PET syllabus published for the Preliminary Eligibility Test. The pattern covers Indian history, " +
		"geography, economy, general hindi, english grammar, reasoning, numerical ability and data interpretation. " +
		"Negative marking of one quarter mark applies to each wrong answer in the objective paper."
)

const admitCardJSON = `{"type":"admit_card","id":"RRB ALP Stage 2 Admit Card 2025","title":"RRB ALP Stage 2 Admit Card 2025",
"last_date":null,"new":true,"details":{"admit_card_summary":{"Exam Date":"25 September 2025"},
"important_links":{"Download Admit Card":"https://rrb.example/ac"}}}`

const syllabusJSON = "```json\n" + `{"type":"syllabus","id":"upsssc-pet-syllabus","title":"UPSSSC PET Syllabus",
"last_date":null,"new":true,"details":{"important_links":{"Download Syllabus":"https://upsssc.example/pet.pdf"}}}` + "\n```"

var fixedNow = time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)

type fakeDiscoverer struct {
	links map[string][]types.Link
	errs  map[string]error
}

func (f *fakeDiscoverer) Discover(_ context.Context, source string, seen ledger.Set) ([]types.Link, error) {
	if err := f.errs[source]; err != nil {
		return nil, err
	}
	var out []types.Link
	for _, l := range f.links[source] {
		if seen.Has(l.URL) {
			continue
		}
		seen.Add(l.URL)
		out = append(out, l)
	}
	return out, nil
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) FetchArticle(_ context.Context, url string) (string, error) {
	if err := f.errs[url]; err != nil {
		return "", err
	}
	return f.pages[url], nil
}

type scriptedLLM struct {
	mu      sync.Mutex
	respond func(content string) (string, error)
	calls   int
}

func (m *scriptedLLM) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	return "", nil
}

func (m *scriptedLLM) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	_, content, _ := strings.Cut(prompt, "--- ARTICLE CONTENT ---")
	raw, err := m.respond(content)
	if err != nil {
		return "", err
	}
	return llm.CleanJSONBlock(raw), nil
}

func (m *scriptedLLM) GetModel(llm.ModelTier) string { return "scripted" }

func (m *scriptedLLM) Close() error { return nil }

func byTopic(content string) (string, error) {
	if strings.Contains(content, "Loco Pilot") {
		return admitCardJSON, nil
	}
	return syllabusJSON, nil
}

type memoryRunLog struct {
	started   []uuid.UUID
	outcomes  []db.ClusterOutcome
	completed []db.RunCounts
}

func (m *memoryRunLog) StartRun(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.started = append(m.started, id)
	return nil
}

func (m *memoryRunLog) RecordOutcome(_ context.Context, _ uuid.UUID, o db.ClusterOutcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memoryRunLog) CompleteRun(_ context.Context, _ uuid.UUID, c db.RunCounts, _ error) error {
	m.completed = append(m.completed, c)
	return nil
}

type harness struct {
	orch      *Orchestrator
	store     *store.Store
	ledger    *ledger.Ledger
	blobs     *artifacts.MemoryStore
	events    *publisher.Memory
	runLog    *memoryRunLog
	llm       *scriptedLLM
	discovery *fakeDiscoverer
	fetcher   *fakeFetcher
}

func newHarness(t *testing.T, sources []string, respond func(string) (string, error)) *harness {
	t.Helper()
	dir := t.TempDir()
	clock := func() time.Time { return fixedNow }

	clusterer, err := clustering.New(clustering.DefaultConfig())
	require.NoError(t, err)

	h := &harness{
		store:     store.New(filepath.Join(dir, "data.json"), nil),
		ledger:    ledger.New(filepath.Join(dir, "seen_urls.txt")),
		blobs:     artifacts.NewMemory(),
		events:    publisher.NewMemory(),
		runLog:    &memoryRunLog{},
		llm:       &scriptedLLM{respond: respond},
		discovery: &fakeDiscoverer{links: map[string][]types.Link{}, errs: map[string]error{}},
		fetcher:   &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}},
	}

	h.orch, err = New(Config{Sources: sources, Clock: clock}, Deps{
		Store:       h.store,
		Ledger:      h.ledger,
		Archiver:    archive.New(archive.DefaultRules(), clock, time.UTC),
		Clusterer:   clusterer,
		Discoverer:  h.discovery,
		Fetcher:     h.fetcher,
		Synthesizer: synthesis.New(h.llm, synthesis.Config{Clock: clock}, nil),
		Artifacts:   artifacts.NewWriter(h.blobs, clock),
		Publisher:   h.events,
		RunLog:      h.runLog,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) addLink(source, title, url, content string) {
	h.discovery.links[source] = append(h.discovery.links[source], types.Link{Title: title, URL: url})
	h.fetcher.pages[url] = content
}

func TestRunCycle_EndToEnd(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list", "https://b.example/list"}, byTopic)
	h.addLink("https://a.example/list", "RRB ALP Admit Card 2025", "https://a.example/alp", alpFirst)
	h.addLink("https://b.example/list", "Railway ALP Admit Card", "https://b.example/alp", alpSecond)
	h.addLink("https://b.example/list", "UPSSSC PET Syllabus", "https://b.example/pet", petSyllabus)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 2, report.Clusters)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Duplicates)
	assert.Equal(t, 2, h.llm.calls)

	state, err := h.store.Load()
	require.NoError(t, err)
	require.Len(t, state.Active[types.CategoryAdmitCard], 1)
	require.Len(t, state.Active[types.CategorySyllabus], 1)

	admit := state.Active[types.CategoryAdmitCard][0]
	assert.Equal(t, "rrb-alp-stage-2-admit-card-2025", admit.ID)
	assert.Equal(t, "2025-08-01", admit.CreationDate)
	assert.Equal(t, "upsssc-pet-syllabus", state.Active[types.CategorySyllabus][0].ID)

	seen, err := h.ledger.Load()
	require.NoError(t, err)
	for _, u := range []string{"https://a.example/alp", "https://b.example/alp", "https://b.example/pet"} {
		assert.True(t, seen.Has(u), u)
	}

	assert.Contains(t, h.blobs.Paths(), "consolidated/rrb-alp-admit-card-2025.txt")
	assert.Contains(t, h.blobs.Paths(), "consolidated/upsssc-pet-syllabus.txt")
	blob, ok := h.blobs.Get("consolidated/rrb-alp-admit-card-2025.txt")
	require.True(t, ok)
	assert.Contains(t, string(blob), "Today's date is 2025-08-01")
	assert.Contains(t, string(blob), "--- Source: https://a.example/alp ---")
	assert.Contains(t, string(blob), "--- Source: https://b.example/alp ---")

	msgs := h.events.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, publisher.EventRecordInserted, msgs[0].Event)
	event := msgs[0].Payload.(publisher.RecordInserted)
	assert.Equal(t, report.RunID, event.RunID)
	assert.ElementsMatch(t, []string{"https://a.example/alp", "https://b.example/alp"}, event.Sources)

	require.Len(t, h.runLog.completed, 1)
	assert.Equal(t, report.Counts(), h.runLog.completed[0])
	assert.Len(t, h.runLog.outcomes, 2)
	assert.Same(t, report, h.orch.LastReport())
}

func TestRunCycle_SecondCycleFindsNothingNew(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list"}, byTopic)
	h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://a.example/pet", petSyllabus)

	_, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Discovered)
	assert.Zero(t, report.Clusters)
	assert.Equal(t, 1, h.llm.calls)
}

func TestRunCycle_ShortAndFailedFetchesAreMarkedSeen(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list"}, byTopic)
	h.addLink("https://a.example/list", "SSC MTS Notification", "https://a.example/short", "Too short to be useful.")
	h.addLink("https://a.example/list", "IBPS PO Result", "https://a.example/down", "")
	h.fetcher.errs["https://a.example/down"] = errors.New("connection reset")

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 1, report.ShortDiscarded)
	assert.Equal(t, 1, report.FetchFailed)
	assert.Zero(t, report.Clusters)
	assert.Zero(t, h.llm.calls)

	seen, err := h.ledger.Load()
	require.NoError(t, err)
	assert.True(t, seen.Has("https://a.example/short"))
	assert.True(t, seen.Has("https://a.example/down"))
}

func TestRunCycle_ContentAtThresholdIsKept(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list"}, byTopic)
	exact := strings.Repeat("न", MinContentLength)
	h.addLink("https://a.example/list", "Bharti Notification", "https://a.example/hi", exact)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ShortDiscarded)
	assert.Equal(t, 1, report.Clusters)
}

func TestRunCycle_SynthesisFailureStillMarksSeen(t *testing.T) {
	tests := []struct {
		name    string
		respond func(string) (string, error)
		reason  string
	}{
		{"model error", func(string) (string, error) { return "", errors.New("quota exceeded") }, synthesis.ErrGeneration.Error()},
		{"no json", func(string) (string, error) { return "I could not find anything.", nil }, synthesis.ErrNoJSON.Error()},
		{"unknown type", func(string) (string, error) {
			return `{"type":"blog_post","id":"x","title":"X","details":{"important_links":{}}}`, nil
		}, synthesis.ErrUnroutable.Error()},
		{"missing id", func(string) (string, error) {
			return `{"type":"syllabus","title":"X","details":{"important_links":{}}}`, nil
		}, synthesis.ErrMissingID.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []string{"https://a.example/list"}, tt.respond)
			h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://a.example/pet", petSyllabus)

			report, err := h.orch.RunCycle(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, report.Failed)
			assert.Zero(t, report.Inserted)
			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, tt.reason, report.Outcomes[0].Reason)

			state, err := h.store.Load()
			require.NoError(t, err)
			for _, n := range state.Counts() {
				assert.Zero(t, n)
			}

			seen, err := h.ledger.Load()
			require.NoError(t, err)
			assert.True(t, seen.Has("https://a.example/pet"))
			assert.Empty(t, h.events.Messages())
		})
	}
}

func TestRunCycle_DuplicateRecordIsSkipped(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list"}, byTopic)
	h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://a.example/pet", petSyllabus)
	_, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	// A new URL for the same announcement yields the same id.
	h.addLink("https://a.example/list", "PET Syllabus PDF", "https://a.example/pet-pdf", petSyllabus)
	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Zero(t, report.Inserted)
	state, err := h.store.Load()
	require.NoError(t, err)
	assert.Len(t, state.Active[types.CategorySyllabus], 1)
	assert.Len(t, h.events.Messages(), 1)
}

func TestRunCycle_ArchivesBeforeDiscovery(t *testing.T) {
	h := newHarness(t, nil, byTopic)
	lastDate := "31/07/2025"
	err := h.store.Update(func(s *store.State) (*store.State, bool, error) {
		next, _ := store.Insert(s, types.CategoryLatestJobs, types.Record{
			Type: types.TypeJob, ID: "old-job", Title: "Old Job", LastDate: &lastDate,
			CreationDate: "2025-07-01", New: true, Details: map[string]any{"important_links": map[string]any{}},
		})
		return next, true, nil
	})
	require.NoError(t, err)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Archived)

	state, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Active[types.CategoryLatestJobs])
	assert.Len(t, state.Archived[types.CategoryLatestJobs], 1)
}

func TestRunCycle_FailingSourceIsSkipped(t *testing.T) {
	h := newHarness(t, []string{"https://down.example/list", "https://a.example/list"}, byTopic)
	h.discovery.errs["https://down.example/list"] = errors.New("503")
	h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://a.example/pet", petSyllabus)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Inserted)
}

func TestRunCycle_SharedLinkProcessedOnce(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list", "https://b.example/list"}, byTopic)
	h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://shared.example/pet", petSyllabus)
	h.addLink("https://b.example/list", "UPSSSC PET Syllabus", "https://shared.example/pet", petSyllabus)

	report, err := h.orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Clusters)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	h := newHarness(t, []string{"https://a.example/list"}, byTopic)
	h.addLink("https://a.example/list", "UPSSSC PET Syllabus", "https://a.example/pet", petSyllabus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orch.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, h.llm.calls)

	seen, err := h.ledger.Load()
	require.NoError(t, err)
	assert.False(t, seen.Has("https://a.example/pet"))
}

func TestLoop_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, byTopic)
	ctx, cancel := context.WithCancel(context.Background())

	var cycles int
	h.orch.cfg.OnProgress = func(e ProgressEvent) {
		if e.Step == StepComplete {
			cycles++
			cancel()
		}
	}

	err := h.orch.Loop(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, cycles)
}

func TestLoop_RejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t, nil, byTopic)
	assert.Error(t, h.orch.Loop(context.Background(), 0))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.ErrorContains(t, err, "store is required")
}

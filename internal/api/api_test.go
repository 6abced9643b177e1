package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crosslink/internal/api"
	"crosslink/internal/catalog/mdl"
	"crosslink/internal/linkstore"
	"crosslink/internal/lookup"
	"crosslink/internal/metrics"
	"crosslink/internal/resolver"
	"crosslink/internal/services"
	"crosslink/internal/syncer"
	"crosslink/internal/testsupport"
)

type syncerStub struct {
	report *syncer.SyncReport
	err    error
	calls  int
}

func (s *syncerStub) RunScheduledSync(context.Context, time.Duration) (*syncer.SyncReport, error) {
	s.calls++
	return s.report, s.err
}

type resolverStub struct{ key string }

func (r resolverStub) Resolve(_ context.Context, q resolver.Query) *resolver.Match {
	if r.key == "" {
		return nil
	}
	return &resolver.Match{Candidate: mdl.Candidate{Key: r.key, Title: q.Title, Year: q.Year}}
}

type enricherStub struct{}

func (enricherStub) FetchEnrichment(context.Context, string) *linkstore.Enrichment {
	rating := 8.0
	return &linkstore.Enrichment{Rating: &rating, Tags: []string{"Thriller"}, Cast: &linkstore.CastBuckets{
		Main: []linkstore.CastEntry{{Name: "Kim Hye Soo", PersonKey: "kim-hye-soo"}},
	}}
}

func (enricherStub) FetchCast(context.Context, string) *linkstore.CastBuckets { return nil }

type fixture struct {
	server *httptest.Server
	store  *linkstore.Store
	syncer *syncerStub
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	store := testsupport.MustOpenStore(t, cfg)
	stub := &syncerStub{}
	svc := lookup.New(store, resolverStub{key: "signal-2016"}, enricherStub{}, cfg.TitleTTL(), nil)
	handler := api.NewHandler(api.Deps{
		Store:   store,
		Syncer:  stub,
		Lookup:  svc,
		Metrics: metrics.New(false),
		Token:   cfg.Paths.APIToken,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &fixture{server: server, store: store, syncer: stub}
}

func (f *fixture) do(t *testing.T, method, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestCronSyncRecordsAuditTrail(t *testing.T) {
	f := newFixture(t, "")
	f.syncer.report = &syncer.SyncReport{RunID: "run-7", Results: []syncer.TaskResult{
		{Task: syncer.TaskPriority, Success: true, Count: 2, DurationMS: 40},
		{Task: syncer.TaskStale, Success: false, Count: 1, Error: "time budget exhausted with 3 of 4 items left", DurationMS: 900},
	}}

	resp, body := f.do(t, http.MethodPost, "/api/cron/sync", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var payload api.SyncResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RunID != "run-7" || len(payload.Results) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !strings.Contains(string(body), `"durationMs":900`) {
		t.Fatalf("expected camelCase duration in %s", body)
	}

	runs, err := f.store.ListSyncRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListSyncRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 audit rows, got %+v", runs)
	}

	resp, body = f.do(t, http.MethodGet, "/api/sync/runs?limit=1", "")
	var history api.SyncRunsResponse
	if err := json.Unmarshal(body, &history); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %v", resp.StatusCode, err)
	}
	if len(history.Runs) != 1 || history.Runs[0].Task != syncer.TaskStale {
		t.Fatalf("expected newest row first, got %+v", history.Runs)
	}
}

func TestCronSyncBusyIsConflict(t *testing.T) {
	f := newFixture(t, "")
	f.syncer.err = services.Wrap(services.ErrBusy, "syncer", "acquire run lock", "held", nil)

	resp, _ := f.do(t, http.MethodPost, "/api/cron/sync", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, "s3cret")

	if resp, _ := f.do(t, http.MethodPost, "/api/cron/sync", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, "/api/cron/sync", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if f.syncer.calls != 0 {
		t.Fatal("sync must not run for unauthorized callers")
	}
	f.syncer.report = &syncer.SyncReport{RunID: "ok"}
	if resp, _ := f.do(t, http.MethodPost, "/api/cron/sync", "s3cret"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/metrics", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics should stay open, got %d", resp.StatusCode)
	}
}

func TestLinkRoutes(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	rating := 9.0
	if err := f.store.UpsertResolvedLink(ctx, "tv:1", "one", linkstore.Enrichment{Rating: &rating, Cast: &linkstore.CastBuckets{
		Main: []linkstore.CastEntry{{Name: "A", PersonKey: "a"}},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, body := f.do(t, http.MethodGet, "/api/links/tv:1/seasons/3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var link api.LinkResponse
	if err := json.Unmarshal(body, &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if link.Season != 3 || link.SourceSeason != 1 || link.CatalogBKey != "one" || !link.Fresh {
		t.Fatalf("unexpected season fallback %+v", link)
	}

	if resp, _ := f.do(t, http.MethodGet, "/api/links/tv:404", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for uncached link, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/api/links/tv:1/seasons/zero", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad season, got %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodGet, "/api/links/tv:2?title=Signal&year=2016", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected on-demand resolution, got %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if link.CatalogBKey != "signal-2016" || link.Rating == nil || len(link.Tags) != 1 {
		t.Fatalf("unexpected resolved link %+v", link)
	}
}

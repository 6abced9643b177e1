package lookup_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/enrichment"
	"crosslink/internal/linkstore"
	"crosslink/internal/lookup"
	"crosslink/internal/metrics"
	"crosslink/internal/resolver"
	"crosslink/internal/testsupport"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const ttl = 7 * 24 * time.Hour

type stubResolver struct {
	mu      sync.Mutex
	matches map[string]string
	calls   int
}

func (s *stubResolver) Resolve(_ context.Context, q resolver.Query) *resolver.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	key, ok := s.matches[q.Title]
	if !ok {
		return nil
	}
	return &resolver.Match{Candidate: mdl.Candidate{Key: key, Title: q.Title, Year: q.Year}, Reason: resolver.ReasonOnlyCandidate}
}

type stubEnricher struct {
	cast        *linkstore.CastBuckets
	enrichment  *linkstore.Enrichment
	castCalls   atomic.Int32
	enrichCalls atomic.Int32
}

func (s *stubEnricher) FetchEnrichment(context.Context, string) *linkstore.Enrichment {
	s.enrichCalls.Add(1)
	return s.enrichment
}

func (s *stubEnricher) FetchCast(context.Context, string) *linkstore.CastBuckets {
	s.castCalls.Add(1)
	return s.cast
}

func newStore(t *testing.T) (*linkstore.Store, *testsupport.Clock) {
	t.Helper()
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), linkstore.WithClock(clock.Now))
	return store, clock
}

func sampleCast() *linkstore.CastBuckets {
	return &linkstore.CastBuckets{Main: []linkstore.CastEntry{{Name: "Lee Je Hoon", PersonKey: "lee-je-hoon", RoleType: linkstore.RoleMain}}}
}

func TestGetResolvedLinkBackfillsEmptyCastOnce(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	rating := 8.1
	if err := store.UpsertResolvedLink(ctx, "tv:1", "one", linkstore.Enrichment{Rating: &rating, Tags: []string{"Life"}, Cast: &linkstore.CastBuckets{}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seeded, _ := store.GetResolvedLink(ctx, "tv:1")
	clock.Advance(time.Hour)

	enricher := &stubEnricher{cast: sampleCast()}
	svc := lookup.New(store, &stubResolver{}, enricher, ttl, nil, lookup.WithClock(clock.Now))

	first, err := svc.GetResolvedLink(ctx, "tv:1")
	if err != nil {
		t.Fatalf("GetResolvedLink: %v", err)
	}
	if first.Cast.Empty() {
		t.Fatal("expected backfilled cast on the returned record")
	}
	if _, err := svc.GetResolvedLink(ctx, "tv:1"); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if got := enricher.castCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one cast fetch, got %d", got)
	}

	stored, _ := store.GetResolvedLink(ctx, "tv:1")
	if stored.Cast.Empty() || stored.Cast.Main[0].PersonKey != "lee-je-hoon" {
		t.Fatalf("expected persisted cast, got %+v", stored.Cast)
	}
	if *stored.Rating != rating || len(stored.Tags) != 1 || stored.Tags[0] != "Life" {
		t.Fatalf("backfill disturbed other fields: %+v", stored.Enrichment)
	}
	if !stored.CachedAt.Equal(seeded.CachedAt) {
		t.Fatalf("cachedAt moved from %v to %v", seeded.CachedAt, stored.CachedAt)
	}
}

func TestGetResolvedLinkBackfillFailureReturnsNilCast(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	rating := 7.0
	if err := store.UpsertResolvedLink(ctx, "tv:1", "one", linkstore.Enrichment{Rating: &rating, Cast: &linkstore.CastBuckets{}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := lookup.New(store, &stubResolver{}, &stubEnricher{}, ttl, nil, lookup.WithClock(clock.Now))

	link, err := svc.GetResolvedLink(ctx, "tv:1")
	if err != nil {
		t.Fatalf("GetResolvedLink: %v", err)
	}
	if link.Cast != nil || link.Rating == nil {
		t.Fatalf("expected rating with nil cast, got %+v", link.Enrichment)
	}
}

func TestGetResolvedLinkSkipsBackfillWhenStale(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	if err := store.UpsertResolvedLink(ctx, "tv:1", "one", linkstore.Enrichment{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	clock.Advance(ttl)
	enricher := &stubEnricher{cast: sampleCast()}
	svc := lookup.New(store, &stubResolver{}, enricher, ttl, nil, lookup.WithClock(clock.Now))

	if _, err := svc.GetResolvedLink(ctx, "tv:1"); err != nil {
		t.Fatalf("GetResolvedLink: %v", err)
	}
	if enricher.castCalls.Load() != 0 {
		t.Fatal("stale records are left to the sync")
	}
}

func TestGetSeasonLinkFallsBackToSeasonOne(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	rating := 9.0
	seasonRating := 8.5
	if err := store.UpsertResolvedLink(ctx, "tv:5", "s1", linkstore.Enrichment{Rating: &rating, Cast: sampleCast()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.UpsertSeasonLink(ctx, "tv:5", 2, "s2", linkstore.Enrichment{}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if err := store.UpsertSeasonLink(ctx, "tv:5", 3, "s3", linkstore.Enrichment{Rating: &seasonRating}); err != nil {
		t.Fatalf("seed season 3: %v", err)
	}
	svc := lookup.New(store, &stubResolver{}, &stubEnricher{}, ttl, nil, lookup.WithClock(clock.Now))

	cases := []struct {
		season     int
		wantKey    string
		wantSource int
		wantRating float64
	}{
		{season: 1, wantKey: "s1", wantSource: 1, wantRating: rating},
		{season: 2, wantKey: "s1", wantSource: 1, wantRating: rating},
		{season: 3, wantKey: "s3", wantSource: 3, wantRating: seasonRating},
		{season: 4, wantKey: "s1", wantSource: 1, wantRating: rating},
	}
	for _, tc := range cases {
		link, err := svc.GetSeasonLink(ctx, "tv:5", tc.season)
		if err != nil {
			t.Fatalf("season %d: %v", tc.season, err)
		}
		if link.CatalogBKey != tc.wantKey || link.SourceSeason != tc.wantSource || link.Season != tc.season {
			t.Fatalf("season %d: unexpected link %+v", tc.season, link)
		}
		if link.Rating == nil || *link.Rating != tc.wantRating {
			t.Fatalf("season %d: unexpected rating %v", tc.season, link.Rating)
		}
	}

	missing, err := svc.GetSeasonLink(ctx, "tv:404", 2)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for uncached title, got %+v, %v", missing, err)
	}
}

func TestReadsRecordOneResultEach(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	if err := store.UpsertResolvedLink(ctx, "tv:5", "s1", linkstore.Enrichment{Cast: sampleCast()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.UpsertSeasonLink(ctx, "tv:5", 2, "s2", linkstore.Enrichment{}); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	m := metrics.New(false)
	res := &stubResolver{matches: map[string]string{"Signal": "signal"}}
	enricher := &stubEnricher{enrichment: &linkstore.Enrichment{Cast: sampleCast()}}
	svc := lookup.New(store, res, enricher, ttl, nil, lookup.WithClock(clock.Now), lookup.WithMetrics(m))

	if _, err := svc.GetSeasonLink(ctx, "tv:5", 2); err != nil {
		t.Fatalf("fallback read: %v", err)
	}
	if _, err := svc.GetSeasonLink(ctx, "tv:5", 1); err != nil {
		t.Fatalf("title read: %v", err)
	}
	if _, err := svc.Lookup(ctx, lookup.Request{CatalogAKey: "tv:7", Title: "Signal", Year: 2016}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	expected := `
# HELP crosslink_lookups_total Read-path lookups by result (hit, backfill, resolved, miss).
# TYPE crosslink_lookups_total counter
crosslink_lookups_total{result="hit"} 1
crosslink_lookups_total{result="resolved"} 1
crosslink_lookups_total{result="season_fallback"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "crosslink_lookups_total"); err != nil {
		t.Fatal(err)
	}
}

func TestLookupCachesKnownMissForTTL(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	res := &stubResolver{matches: map[string]string{}}
	svc := lookup.New(store, res, &stubEnricher{}, ttl, nil, lookup.WithClock(clock.Now))
	req := lookup.Request{CatalogAKey: "movie:9", Title: "Nowhere", Year: 2001}

	link, err := svc.Lookup(ctx, req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !link.KnownMiss() {
		t.Fatalf("expected known miss, got %+v", link)
	}
	if _, err := svc.Lookup(ctx, req); err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if res.calls != 1 {
		t.Fatalf("expected cached miss to skip resolution, got %d calls", res.calls)
	}

	clock.Advance(ttl)
	res.matches["Nowhere"] = "nowhere-2001"
	if _, err := svc.Lookup(ctx, req); err != nil {
		t.Fatalf("Lookup after ttl: %v", err)
	}
	if res.calls != 2 {
		t.Fatalf("expected expired miss to re-resolve, got %d calls", res.calls)
	}
	stored, _ := store.GetResolvedLink(ctx, "movie:9")
	if stored.CatalogBKey != "nowhere-2001" || !stored.Pending() {
		t.Fatalf("expected key-only link after failed enrichment, got %+v", stored)
	}
}

func TestLookupKeepsStaleDataWhenEnrichmentFails(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	rating := 6.5
	if err := store.UpsertResolvedLink(ctx, "tv:2", "two", linkstore.Enrichment{Rating: &rating, Cast: sampleCast()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	clock.Advance(ttl + time.Hour)
	res := &stubResolver{}
	enricher := &stubEnricher{}
	svc := lookup.New(store, res, enricher, ttl, nil, lookup.WithClock(clock.Now))

	link, err := svc.Lookup(ctx, lookup.Request{CatalogAKey: "tv:2", Title: "Two"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if link.Fresh || link.Rating == nil || *link.Rating != rating {
		t.Fatalf("expected stale record served as is, got %+v", link)
	}
	if res.calls != 0 || enricher.enrichCalls.Load() != 1 {
		t.Fatalf("expected direct enrichment of the known key, resolver=%d enrich=%d", res.calls, enricher.enrichCalls.Load())
	}
}

func TestSessionMemoizesIdenticalRequests(t *testing.T) {
	store, clock := newStore(t)
	res := &stubResolver{matches: map[string]string{"Signal": "signal"}}
	rating := 9.1
	enricher := &stubEnricher{enrichment: &linkstore.Enrichment{Rating: &rating, Cast: sampleCast()}}
	svc := lookup.New(store, res, enricher, ttl, nil, lookup.WithClock(clock.Now))
	session := svc.NewSession()
	ctx := context.Background()

	req := lookup.Request{CatalogAKey: "tv:3", Title: "Signal", Year: 2016}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := session.Lookup(ctx, req); err != nil {
				t.Errorf("Lookup: %v", err)
			}
		}()
	}
	wg.Wait()
	if enricher.enrichCalls.Load() != 1 || res.calls != 1 {
		t.Fatalf("expected one upstream resolution, resolver=%d enrich=%d", res.calls, enricher.enrichCalls.Load())
	}

	other := req
	other.Year = 2017
	if _, err := session.Lookup(ctx, other); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if session.Len() != 2 {
		t.Fatalf("expected two memo entries, got %d", session.Len())
	}

	fresh := svc.NewSession()
	if fresh.Len() != 0 {
		t.Fatal("sessions must not share state")
	}
}

func TestLookupMoveToHeavenEndToEnd(t *testing.T) {
	var requests atomic.Int32
	routes := map[string]string{
		"/search/q/Move%20to%20Heaven": `{"results":{"dramas":[
			{"slug":"58953-move-to-heaven","title":"Move to Heaven","year":2021},
			{"slug":"1-heaven","title":"Heaven","year":2019}
		]}}`,
		"/id/58953-move-to-heaven": `{"data":{"title":"Move to Heaven","rating":"8.7",
			"details":{"ranked":"#12","popularity":"#345"},
			"others":{"tags":["Life","Family"]}}}`,
		"/id/58953-move-to-heaven/cast": `{"data":{"casts":{"Main Role":[
			{"name":"Lee Je Hoon","slug":"people/1-lee-je-hoon","role":{"name":"Cho Sang Gu","type":"Main Role"}}
		]}}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, ok := routes[r.URL.EscapedPath()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := mdl.New(server.URL)
	if err != nil {
		t.Fatalf("mdl.New: %v", err)
	}
	store, clock := newStore(t)
	svc := lookup.New(store, resolver.New(client, nil, nil), enrichment.New(client, nil), ttl, nil, lookup.WithClock(clock.Now))
	ctx := context.Background()
	req := lookup.Request{CatalogAKey: "tv:96162", Title: "Move to Heaven", Year: 2021}

	link, err := svc.Lookup(ctx, req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if link.CatalogBKey != "58953-move-to-heaven" {
		t.Fatalf("unexpected match %+v", link)
	}
	if link.Rating == nil || *link.Rating != 8.7 {
		t.Fatalf("unexpected rating %v", link.Rating)
	}
	if len(link.Tags) != 2 || link.Tags[0] != "Life" || link.Tags[1] != "Family" {
		t.Fatalf("unexpected tags %v", link.Tags)
	}

	before := requests.Load()
	clock.Advance(6 * 24 * time.Hour)
	again, err := svc.Lookup(ctx, req)
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if requests.Load() != before {
		t.Fatalf("expected no network calls on a fresh read, saw %d more", requests.Load()-before)
	}
	if *again.Rating != 8.7 || len(again.Tags) != 2 || again.Cast.Empty() {
		t.Fatalf("unexpected cached link %+v", again)
	}
}

package linkstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"crosslink/internal/linkstore"
	"crosslink/internal/services"
	"crosslink/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func sampleEnrichment() linkstore.Enrichment {
	return linkstore.Enrichment{
		Rating:     ptr(8.7),
		Rank:       ptr(12),
		Popularity: ptr(345),
		Tags:       []string{"Life", "Family"},
		Cast: &linkstore.CastBuckets{
			Main: []linkstore.CastEntry{{Name: "Lee Je Hoon", PersonKey: "1-lee", Character: "Sang Gu", RoleType: linkstore.RoleMain}},
		},
	}
}

func TestResolvedLinkRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	before := time.Now().Add(-time.Millisecond)
	if err := store.UpsertResolvedLink(ctx, "tv:96162", "58953-move-to-heaven", sampleEnrichment()); err != nil {
		t.Fatalf("UpsertResolvedLink: %v", err)
	}
	after := time.Now().Add(time.Millisecond)

	link, err := store.GetResolvedLink(ctx, "tv:96162")
	if err != nil {
		t.Fatalf("GetResolvedLink: %v", err)
	}
	if link == nil {
		t.Fatal("expected link")
	}
	if link.CatalogBKey != "58953-move-to-heaven" || *link.Rating != 8.7 || *link.Rank != 12 || *link.Popularity != 345 {
		t.Fatalf("unexpected link %+v", link)
	}
	if len(link.Tags) != 2 || link.Tags[0] != "Life" || link.Tags[1] != "Family" {
		t.Fatalf("unexpected tags %v", link.Tags)
	}
	if link.Cast == nil || len(link.Cast.Main) != 1 || link.Cast.Main[0].PersonKey != "1-lee" {
		t.Fatalf("unexpected cast %+v", link.Cast)
	}
	if link.CachedAt.Before(before) || link.CachedAt.After(after) {
		t.Fatalf("cached_at %v outside [%v, %v]", link.CachedAt, before, after)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	link, err := store.GetResolvedLink(ctx, "tv:1")
	if err != nil || link != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", link, err)
	}
	season, err := store.GetSeasonLink(ctx, "tv:1", 2)
	if err != nil || season != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", season, err)
	}
	person, err := store.GetPersonProfile(ctx, "nobody")
	if err != nil || person != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", person, err)
	}
}

func TestUpsertRefreshesCachedAtAndKeepsKey(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), linkstore.WithClock(clock.Now))
	ctx := context.Background()

	if err := store.UpsertResolvedLink(ctx, "tv:1", "slug-a", linkstore.Enrichment{}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock.Advance(48 * time.Hour)
	if err := store.UpsertResolvedLink(ctx, "tv:1", "slug-b", sampleEnrichment()); err != nil {
		t.Fatalf("update: %v", err)
	}

	link, err := store.GetResolvedLink(ctx, "tv:1")
	if err != nil {
		t.Fatalf("GetResolvedLink: %v", err)
	}
	if link.CatalogBKey != "slug-a" {
		t.Fatalf("expected confident key to stay slug-a, got %q", link.CatalogBKey)
	}
	if !link.CachedAt.Equal(clock.Now()) {
		t.Fatalf("expected cached_at %v, got %v", clock.Now(), link.CachedAt)
	}
	if link.Rating == nil {
		t.Fatal("expected enrichment fields replaced")
	}
}

func TestKnownMissCanBeResolvedLater(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.UpsertResolvedLink(ctx, "movie:5", "", linkstore.Enrichment{}); err != nil {
		t.Fatalf("insert miss: %v", err)
	}
	miss, _ := store.GetResolvedLink(ctx, "movie:5")
	if miss == nil || !miss.KnownMiss() {
		t.Fatalf("expected known miss, got %+v", miss)
	}
	if err := store.UpsertResolvedLink(ctx, "movie:5", "found", linkstore.Enrichment{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	link, _ := store.GetResolvedLink(ctx, "movie:5")
	if link.CatalogBKey != "found" {
		t.Fatalf("expected miss to be replaced, got %q", link.CatalogBKey)
	}

	nonEmpty, err := store.ListResolvedLinks(ctx, linkstore.LinkFilter{NonEmptyKey: true})
	if err != nil || len(nonEmpty) != 1 {
		t.Fatalf("expected 1 non-empty link, got %d (%v)", len(nonEmpty), err)
	}
}

func TestRelinkOverridesKeyAndResetsEnrichment(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.UpsertResolvedLink(ctx, "tv:1", "wrong", sampleEnrichment()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Relink(ctx, "tv:1", "right"); err != nil {
		t.Fatalf("Relink: %v", err)
	}
	link, _ := store.GetResolvedLink(ctx, "tv:1")
	if link.CatalogBKey != "right" || !link.Pending() || !link.CachedAt.IsZero() {
		t.Fatalf("unexpected relinked row %+v", link)
	}
}

func TestUpdateCastLeavesCachedAt(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), linkstore.WithClock(clock.Now))
	ctx := context.Background()

	e := sampleEnrichment()
	e.Cast = &linkstore.CastBuckets{}
	if err := store.UpsertResolvedLink(ctx, "tv:1", "slug", e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	stamped := clock.Now()
	clock.Advance(time.Hour)

	cast := &linkstore.CastBuckets{Guest: []linkstore.CastEntry{{Name: "Guest", PersonKey: "9-g"}}}
	if err := store.UpdateResolvedLinkCast(ctx, "tv:1", cast); err != nil {
		t.Fatalf("UpdateResolvedLinkCast: %v", err)
	}
	link, _ := store.GetResolvedLink(ctx, "tv:1")
	if !link.CachedAt.Equal(stamped) {
		t.Fatalf("cached_at moved from %v to %v", stamped, link.CachedAt)
	}
	if link.Cast.Empty() || *link.Rating != 8.7 {
		t.Fatalf("unexpected link after cast update %+v", link)
	}

	err := store.UpdateResolvedLinkCast(ctx, "tv:404", cast)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing link, got %v", err)
	}
}

func TestFreshBoundary(t *testing.T) {
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	ttl := 7 * 24 * time.Hour

	if linkstore.Fresh(now.Add(-ttl-time.Millisecond), now, ttl) {
		t.Fatal("expected ttl+1ms to be stale")
	}
	if !linkstore.Fresh(now.Add(-ttl+time.Millisecond), now, ttl) {
		t.Fatal("expected ttl-1ms to be fresh")
	}
	if linkstore.Fresh(now.Add(-ttl), now, ttl) {
		t.Fatal("expected exactly ttl to be stale")
	}
	if linkstore.Fresh(time.Time{}, now, ttl) {
		t.Fatal("expected zero cached_at to be stale")
	}
}

func TestStaleFilterUsesStoredTimestamps(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), linkstore.WithClock(clock.Now))
	ctx := context.Background()

	if err := store.UpsertResolvedLink(ctx, "tv:old", "old", linkstore.Enrichment{}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock.Advance(7 * 24 * time.Hour)
	if err := store.UpsertResolvedLink(ctx, "tv:new", "new", linkstore.Enrichment{}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cutoff := clock.Now().Add(-6 * 24 * time.Hour)
	stale, err := store.ListResolvedLinks(ctx, linkstore.LinkFilter{NonEmptyKey: true, CachedBefore: cutoff})
	if err != nil {
		t.Fatalf("ListResolvedLinks: %v", err)
	}
	if len(stale) != 1 || stale[0].CatalogAKey != "tv:old" {
		t.Fatalf("expected only tv:old to be stale, got %+v", stale)
	}
}

func TestSeasonLinks(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	err := store.UpsertSeasonLink(ctx, "tv:1", 1, "slug", linkstore.Enrichment{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected season 1 to be rejected, got %v", err)
	}

	if err := store.UpsertSeasonLink(ctx, "tv:1", 2, "slug-2", linkstore.Enrichment{}); err != nil {
		t.Fatalf("UpsertSeasonLink: %v", err)
	}
	pending, _ := store.GetSeasonLink(ctx, "tv:1", 2)
	if pending == nil || !pending.Pending() {
		t.Fatalf("expected pending season row, got %+v", pending)
	}

	if err := store.UpsertSeasonLink(ctx, "tv:1", 3, "slug-3", sampleEnrichment()); err != nil {
		t.Fatalf("UpsertSeasonLink: %v", err)
	}
	seasons, err := store.SeasonLinksFor(ctx, "tv:1")
	if err != nil {
		t.Fatalf("SeasonLinksFor: %v", err)
	}
	if len(seasons) != 2 || seasons[0].Season != 2 || seasons[1].Pending() {
		t.Fatalf("unexpected seasons %+v", seasons)
	}
}

func TestPersonProfilesAndReferencedKeys(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	e := sampleEnrichment()
	e.Cast.Support = []linkstore.CastEntry{{Name: "B", PersonKey: "2-b"}, {Name: "Dup", PersonKey: "1-lee"}}
	if err := store.UpsertResolvedLink(ctx, "tv:1", "slug", e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	season := sampleEnrichment()
	season.Cast.Main = []linkstore.CastEntry{{Name: "C", PersonKey: "3-c"}}
	if err := store.UpsertSeasonLink(ctx, "tv:1", 2, "slug-2", season); err != nil {
		t.Fatalf("insert season: %v", err)
	}
	if err := store.UpsertResolvedLink(ctx, "tv:2", "", linkstore.Enrichment{Cast: &linkstore.CastBuckets{Main: []linkstore.CastEntry{{PersonKey: "ignored"}}}}); err != nil {
		t.Fatalf("insert miss: %v", err)
	}

	keys, err := store.ReferencedPersonKeys(ctx)
	if err != nil {
		t.Fatalf("ReferencedPersonKeys: %v", err)
	}
	want := []string{"1-lee", "2-b", "3-c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}

	if err := store.UpsertPersonProfile(ctx, "1-lee", []byte(`{"name":"Lee Je Hoon"}`)); err != nil {
		t.Fatalf("UpsertPersonProfile: %v", err)
	}
	if err := store.UpsertPersonProfile(ctx, "2-b", []byte(`not json`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	profile, err := store.GetPersonProfile(ctx, "1-lee")
	if err != nil || profile == nil || string(profile.Payload) != `{"name":"Lee Je Hoon"}` {
		t.Fatalf("unexpected profile %+v (%v)", profile, err)
	}
	stamps, err := store.PersonCachedAt(ctx)
	if err != nil || len(stamps) != 1 {
		t.Fatalf("expected one timestamp, got %v (%v)", stamps, err)
	}
}

func TestCorruptCastDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.UpsertResolvedLink(ctx, "tv:1", "slug", sampleEnrichment()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`UPDATE resolved_links SET cast_json = '{"version":9}' WHERE catalog_a_key = 'tv:1'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err = store.GetResolvedLink(ctx, "tv:1")
	if !errors.Is(err, services.ErrCorruptRecord) {
		t.Fatalf("expected corrupt record error, got %v", err)
	}
}

func TestWatchItemsAndSyncRuns(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), linkstore.WithClock(clock.Now))
	ctx := context.Background()

	items := []linkstore.WatchItem{
		{CatalogAKey: "tv:1", Title: "Move to Heaven", Year: 2021, Status: "Watching"},
		{CatalogAKey: "tv:2", Title: "Crash Landing on You", NativeTitle: "사랑의 불시착", Year: 2019, Status: linkstore.StatusCompleted},
	}
	for _, item := range items {
		clock.Advance(time.Minute)
		if err := store.UpsertWatchItem(ctx, item); err != nil {
			t.Fatalf("UpsertWatchItem: %v", err)
		}
	}
	if err := store.UpsertWatchItem(ctx, linkstore.WatchItem{CatalogAKey: "tv:3", Title: "X", Status: "binging"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}

	watching, err := store.ListWatchItems(ctx, linkstore.StatusWatching)
	if err != nil || len(watching) != 1 || watching[0].CatalogAKey != "tv:1" {
		t.Fatalf("unexpected watching list %+v (%v)", watching, err)
	}
	all, _ := store.ListWatchItems(ctx)
	if len(all) != 2 || all[0].CatalogAKey != "tv:2" {
		t.Fatalf("expected most recent first, got %+v", all)
	}

	runs := []linkstore.SyncRun{
		{RunID: "r1", Task: "priority", Success: true, Count: 3, DurationMS: 1200},
		{RunID: "r1", Task: "stale", Success: false, Error: "budget exhausted", DurationMS: 50},
	}
	if err := store.RecordSyncRuns(ctx, runs); err != nil {
		t.Fatalf("RecordSyncRuns: %v", err)
	}
	history, err := store.ListSyncRuns(ctx, 10)
	if err != nil || len(history) != 2 {
		t.Fatalf("unexpected history %+v (%v)", history, err)
	}
	if history[0].Task != "stale" || history[0].Success || history[1].Count != 3 {
		t.Fatalf("unexpected history order or values %+v", history)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.db")
	store, err := linkstore.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := linkstore.OpenPath(path); !errors.Is(err, linkstore.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

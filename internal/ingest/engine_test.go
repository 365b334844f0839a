package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/parse"
	"jobtrack-engine/internal/store"
)

type fakeGateway struct {
	mu       sync.Mutex
	messages map[string]domain.Message
	search   []string
	history  []string

	searchErr error
	fetchErr  map[string]error
	searches  int
	histories []string
	fetched   []string
}

func (g *fakeGateway) Search(ctx context.Context, query string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searches++
	return g.search, g.searchErr
}

func (g *fakeGateway) Fetch(ctx context.Context, id string) (domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, id)
	if err := g.fetchErr[id]; err != nil {
		return domain.Message{}, err
	}
	m, ok := g.messages[id]
	if !ok {
		return domain.Message{}, errors.New("no such message")
	}
	return m, nil
}

func (g *fakeGateway) HistorySince(ctx context.Context, checkpoint string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.histories = append(g.histories, checkpoint)
	return g.history, nil
}

func (g *fakeGateway) Profile(ctx context.Context) (mailbox.Profile, error) {
	return mailbox.Profile{EmailAddress: "me@example.com"}, nil
}

func (g *fakeGateway) add(m domain.Message) {
	if g.messages == nil {
		g.messages = map[string]domain.Message{}
	}
	g.messages[m.ID] = m
	g.search = append(g.search, m.ID)
}

type fixedParser struct {
	confidence map[string]float64
}

func (p fixedParser) Parse(m domain.Message) (domain.ParseOutcome, bool) {
	c, ok := p.confidence[m.ID]
	if !ok {
		return domain.ParseOutcome{}, false
	}
	return domain.ParseOutcome{
		Parsed: domain.ExtractedApplication{
			CompanyName:     "Acme",
			PositionTitle:   domain.UnknownPosition,
			Platform:        domain.PlatformOther,
			Status:          domain.StatusApplied,
			ApplicationDate: m.ReceivedAt(),
		},
		Confidence: c,
		ParserName: "fixed",
	}, true
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return db
}

func staticGateway(g mailbox.Gateway) GatewayFunc {
	return func(context.Context) (mailbox.Gateway, error) { return g, nil }
}

func message(id, historyID, from, subject string) domain.Message {
	return domain.Message{
		ID:           id,
		ThreadID:     id,
		HistoryID:    historyID,
		InternalDate: "1709287200000",
		Subject:      subject,
		From:         from,
	}
}

func TestRunSyncRoutesByConfidence(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("m1", "100", "a@x.com", "s1"))
	gw.add(message("m2", "101", "a@x.com", "s2"))
	gw.add(message("m3", "102", "a@x.com", "newsletter"))

	parser := fixedParser{confidence: map[string]float64{"m1": 0.6, "m2": 0.5999}}
	eng := New(db, staticGateway(gw), parser, nil, Options{})

	res, err := eng.RunSync(ctx, false)
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	want := domain.SyncResult{TotalProcessed: 3, AutoImported: 1, PendingReview: 1}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}

	apps, _ := db.ListApplications(ctx, 0)
	if len(apps) != 1 || *apps[0].EmailMessageID != "m1" || apps[0].Source != domain.SourceGmailSync {
		t.Fatalf("apps = %+v", apps)
	}
	full, _ := db.GetApplication(ctx, apps[0].ID)
	if got := full.History[0].Notes; got != "Auto-imported from Gmail (fixed parser, confidence: 60%)" {
		t.Fatalf("note = %q", got)
	}

	raw, ok, _ := db.GetSetting(ctx, "pending_review_m2")
	if !ok {
		t.Fatal("m2 should be pending review")
	}
	var pr domain.PendingReview
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		t.Fatal(err)
	}
	if pr.Key != "pending_review_m2" || pr.MessageID != "m2" || pr.ParserName != "fixed" || pr.Subject != "s2" {
		t.Fatalf("review = %+v", pr)
	}
	if pr.ReceivedAt != "2024-03-01T10:00:00.000Z" {
		t.Fatalf("receivedAt = %q", pr.ReceivedAt)
	}

	st, _ := db.GetSyncState(ctx)
	if st.SyncInProgress || st.LastSyncAt == nil || st.TotalSynced != 1 {
		t.Fatalf("state = %+v", st)
	}
	if st.LastHistoryID == nil || *st.LastHistoryID != "102" {
		t.Fatalf("checkpoint = %v", st.LastHistoryID)
	}
}

func TestRunSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("m1", "100", "a@x.com", "s1"))
	gw.add(message("m2", "101", "a@x.com", "s2"))
	parser := fixedParser{confidence: map[string]float64{"m1": 0.9, "m2": 0.3}}
	eng := New(db, staticGateway(gw), parser, nil, Options{})

	if _, err := eng.RunSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	res, err := eng.RunSync(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalProcessed != 0 || res.SkippedDuplicates != 2 {
		t.Fatalf("second run = %+v", res)
	}

	apps, _ := db.ListApplications(ctx, 0)
	n, _ := db.CountSettings(ctx, domain.PendingReviewPrefix)
	if len(apps) != 1 || n != 1 {
		t.Fatalf("apps=%d reviews=%d", len(apps), n)
	}
}

func TestSetThresholdAppliesToNextRun(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("m1", "100", "a@x.com", "s1"))
	parser := fixedParser{confidence: map[string]float64{"m1": 0.7, "m2": 0.7}}
	eng := New(db, staticGateway(gw), parser, nil, Options{})

	if res, err := eng.RunSync(ctx, false); err != nil || res.AutoImported != 1 {
		t.Fatalf("first run: %+v %v", res, err)
	}

	eng.SetThreshold(0.8)
	gw.add(message("m2", "101", "a@x.com", "s2"))
	res, err := eng.RunSync(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.AutoImported != 0 || res.PendingReview != 1 {
		t.Fatalf("after raising threshold: %+v", res)
	}

	for _, in := range []float64{0, -1, 1.5} {
		eng.SetThreshold(in)
		if got := eng.Threshold(); got != DefaultAutoImportThreshold {
			t.Fatalf("SetThreshold(%v) -> %v", in, got)
		}
	}
}

func TestRunSyncIncrementalFallsBackToSearch(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("m1", "100", "a@x.com", "s1"))
	parser := fixedParser{confidence: map[string]float64{"m1": 0.9, "m2": 0.9}}
	eng := New(db, staticGateway(gw), parser, nil, Options{})

	if _, err := eng.RunSync(ctx, false); err != nil {
		t.Fatal(err)
	}
	if gw.searches != 1 || len(gw.histories) != 0 {
		t.Fatalf("first run without checkpoint: searches=%d histories=%v", gw.searches, gw.histories)
	}

	// checkpoint 100 now stored; history comes back empty
	gw.add(message("m2", "105", "a@x.com", "s2"))
	res, err := eng.RunSync(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(gw.histories) != 1 || gw.histories[0] != "100" {
		t.Fatalf("histories = %v", gw.histories)
	}
	if gw.searches != 2 {
		t.Fatalf("expected fallback search, searches=%d", gw.searches)
	}
	// m1 was imported by the first run; the fallback search skips it
	if res.TotalProcessed != 1 || res.SkippedDuplicates != 1 || res.AutoImported != 1 {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunSyncIncrementalUsesHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	if _, err := db.TryBeginSync(ctx); err != nil {
		t.Fatal(err)
	}
	cp := "50"
	if err := db.FinishSync(ctx, time.Now(), &cp, 0); err != nil {
		t.Fatal(err)
	}

	gw := &fakeGateway{}
	gw.add(message("m1", "60", "a@x.com", "s1"))
	gw.history = []string{"m1"}
	eng := New(db, staticGateway(gw), fixedParser{}, nil, Options{})

	if _, err := eng.RunSync(ctx, false); err != nil {
		t.Fatal(err)
	}
	if gw.searches != 0 {
		t.Fatalf("history had results, search should not run")
	}

	if _, err := eng.RunSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	if gw.searches != 1 || len(gw.histories) != 1 {
		t.Fatalf("full sync must search: searches=%d histories=%v", gw.searches, gw.histories)
	}
}

func TestRunSyncCheckpointIsNumericMax(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("a", "99", "a@x.com", "s"))
	gw.add(message("b", "123456789012345678901234567890", "a@x.com", "s"))
	gw.add(message("c", "1000", "a@x.com", "s"))
	eng := New(db, staticGateway(gw), fixedParser{}, nil, Options{})

	if _, err := eng.RunSync(ctx, false); err != nil {
		t.Fatal(err)
	}
	st, _ := db.GetSyncState(ctx)
	if *st.LastHistoryID != "123456789012345678901234567890" {
		t.Fatalf("checkpoint = %s", *st.LastHistoryID)
	}
}

func TestRunSyncCountsPerMessageErrors(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{fetchErr: map[string]error{"bad": errors.New("boom")}}
	gw.add(message("bad", "100", "a@x.com", "s"))
	gw.add(message("good", "101", "a@x.com", "s"))
	eng := New(db, staticGateway(gw), fixedParser{confidence: map[string]float64{"good": 1}}, nil, Options{})

	res, err := eng.RunSync(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Errors != 1 || res.AutoImported != 1 || res.TotalProcessed != 1 {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunSyncRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	if won, _ := db.TryBeginSync(ctx); !won {
		t.Fatal("setup")
	}

	gw := &fakeGateway{}
	gw.add(message("m1", "1", "a@x.com", "s"))
	eng := New(db, staticGateway(gw), fixedParser{}, nil, Options{})

	if _, err := eng.RunSync(ctx, false); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("err = %v", err)
	}
	if gw.searches != 0 || len(gw.fetched) != 0 {
		t.Fatal("a rejected run must not touch the mailbox")
	}
	st, _ := db.GetSyncState(ctx)
	if !st.SyncInProgress {
		t.Fatal("the other run's flag must be left alone")
	}
}

func TestRunSyncFileLock(t *testing.T) {
	ctx := context.Background()
	lock := filepath.Join(t.TempDir(), "sync.lock")

	gw := &fakeGateway{}
	gw.add(message("m1", "1", "a@x.com", "s"))
	first := New(newTestStore(t), staticGateway(gw), fixedParser{}, nil, Options{LockPath: lock})

	// hold the lock from inside the first run's gateway call
	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := func(ctx context.Context) (mailbox.Gateway, error) {
		close(entered)
		<-release
		return gw, nil
	}
	first.gateway = blocking

	done := make(chan error, 1)
	go func() {
		_, err := first.RunSync(ctx, false)
		done <- err
	}()
	<-entered

	second := New(newTestStore(t), staticGateway(gw), fixedParser{}, nil, Options{LockPath: lock})
	if _, err := second.RunSync(ctx, false); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("second run err = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := second.RunSync(ctx, false); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

func TestRunSyncReleasesLockOnListError(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{searchErr: errors.New("upstream down")}
	eng := New(db, staticGateway(gw), fixedParser{}, nil, Options{})

	_, err := eng.RunSync(ctx, false)
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("err = %v", err)
	}
	st, _ := db.GetSyncState(ctx)
	if st.SyncInProgress {
		t.Fatal("flag must be cleared after a failed run")
	}
	if st.LastSyncAt != nil {
		t.Fatal("a failed run must not record a sync time")
	}
}

func TestRunSyncNotConnected(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	notConnected := func(context.Context) (mailbox.Gateway, error) { return nil, mailbox.ErrNotConnected }
	eng := New(db, notConnected, fixedParser{}, nil, Options{})

	if _, err := eng.RunSync(ctx, false); !errors.Is(err, mailbox.ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
	st, _ := db.GetSyncState(ctx)
	if st.SyncInProgress {
		t.Fatal("flag must be cleared")
	}
}

func TestRunSyncWithDefaultDispatcher(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("li", "10", "LinkedIn <jobs-noreply@linkedin.com>", "Your application was sent to Stripe"))
	gw.add(message("news", "11", "news@unknown.example", "Weekly newsletter"))
	eng := New(db, staticGateway(gw), parse.DefaultDispatcher(), nil, Options{})

	res, err := eng.RunSync(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalProcessed != 2 || res.AutoImported != 1 || res.PendingReview != 0 || res.Errors != 0 {
		t.Fatalf("res = %+v", res)
	}
	apps, _ := db.ListApplications(ctx, 0)
	if len(apps) != 1 || apps[0].CompanyName != "Stripe" || apps[0].Platform != domain.PlatformLinkedIn {
		t.Fatalf("apps = %+v", apps)
	}
	full, _ := db.GetApplication(ctx, apps[0].ID)
	if got := full.History[0].Notes; got != "Auto-imported from Gmail (linkedin parser, confidence: 70%)" {
		t.Fatalf("note = %q", got)
	}
}

type recorder struct{ events []string }

func (r *recorder) Publish(evt string) { r.events = append(r.events, evt) }

func TestRunSyncPublishesAndReportsStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)

	gw := &fakeGateway{}
	gw.add(message("m1", "7", "a@x.com", "s"))
	rec := &recorder{}
	eng := New(db, staticGateway(gw), fixedParser{confidence: map[string]float64{"m1": 0.2}}, nil, Options{Events: rec})

	if _, err := eng.RunSync(ctx, false); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 1 || !strings.Contains(rec.events[0], `"type":"sync_completed"`) {
		t.Fatalf("events = %v", rec.events)
	}

	st, err := eng.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.PendingReviewCount != 1 || st.TotalSynced != 0 || st.SyncInProgress || *st.LastHistoryID != "7" {
		t.Fatalf("status = %+v", st)
	}
}

func TestPercent(t *testing.T) {
	for c, want := range map[float64]int{0.6: 60, 0.7: 70, 0.55: 55, 1: 100, 0.999: 100} {
		if got := Percent(c); got != want {
			t.Errorf("Percent(%v) = %d, want %d", c, got, want)
		}
	}
}

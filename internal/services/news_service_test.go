package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/models"
)

type fakeOutlet struct {
	name   string
	topics []string
	items  []models.NewsItem
	err    error
	calls  int
}

func (o *fakeOutlet) Name() string     { return o.name }
func (o *fakeOutlet) Topics() []string { return o.topics }
func (o *fakeOutlet) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	o.calls++
	return o.items, o.err
}

func newsItems(outlet string, titles ...string) []models.NewsItem {
	items := make([]models.NewsItem, len(titles))
	for i, title := range titles {
		items[i] = models.NewsItem{Title: title, URL: "https://example.com/" + outlet, Outlet: outlet}
	}
	return items
}

func TestAggregateFiltersByInterest(t *testing.T) {
	tech := &fakeOutlet{name: "tech", topics: []string{"tech"}, items: newsItems("tech", "Go 1.30 released")}
	sports := &fakeOutlet{name: "sports", topics: []string{"sports"}, items: newsItems("sports", "Cup final tonight")}
	svc := NewNewsService([]NewsOutlet{tech, sports}, zap.NewNop())

	got := svc.Aggregate(context.Background(), []string{"Tech"})

	if len(got) != 1 || got[0].Outlet != "tech" {
		t.Fatalf("expected only tech items, got %v", got)
	}
	if sports.calls != 0 {
		t.Errorf("sports outlet should not be queried")
	}
}

func TestAggregateFailingOutletContributesNothing(t *testing.T) {
	good := &fakeOutlet{name: "good", topics: []string{"tech"}, items: newsItems("good", "Working headline")}
	bad := &fakeOutlet{name: "bad", topics: []string{"tech"}, err: fmt.Errorf("upstream down")}
	svc := NewNewsService([]NewsOutlet{good, bad}, zap.NewNop())

	got := svc.Aggregate(context.Background(), []string{"tech"})

	if len(got) != 1 || got[0].Outlet != "good" {
		t.Fatalf("failing outlet should contribute an empty batch, got %v", got)
	}
}

func TestAggregateDedupsByTitlePrefix(t *testing.T) {
	long := strings.Repeat("a", 50)
	first := &fakeOutlet{name: "first", topics: []string{"tech"}, items: newsItems("first",
		"Breaking: Big Merger Announced",
		long+" tail one",
	)}
	second := &fakeOutlet{name: "second", topics: []string{"tech"}, items: newsItems("second",
		"breaking: big merger announced",
		long+" tail two",
		"Unique headline",
	)}
	svc := NewNewsService([]NewsOutlet{first, second}, zap.NewNop())

	got := svc.Aggregate(context.Background(), []string{"tech"})

	if len(got) != 3 {
		t.Fatalf("expected 3 deduped items, got %d: %v", len(got), got)
	}
	// Outlet order is stable and the first occurrence wins.
	if got[0].Outlet != "first" || got[1].Outlet != "first" {
		t.Errorf("first outlet's items should win dedup: %v", got)
	}
	if got[2].Title != "Unique headline" {
		t.Errorf("unique item lost: %v", got)
	}
}

func TestDedupIdempotent(t *testing.T) {
	items := append(
		newsItems("a", "Headline one", "Headline two", "headline ONE"),
		newsItems("b", "Headline three")...,
	)

	once := dedupNews(items)
	twice := dedupNews(once)

	if len(once) != 3 {
		t.Fatalf("dedup len = %d, want 3", len(once))
	}
	if len(twice) != len(once) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(twice), len(once))
	}
}

func TestAggregateTruncatesToMax(t *testing.T) {
	titles := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		titles = append(titles, fmt.Sprintf("Distinct headline number %d", i))
	}
	outlet := &fakeOutlet{name: "bulk", topics: []string{"tech"}, items: newsItems("bulk", titles...)}
	svc := NewNewsService([]NewsOutlet{outlet}, zap.NewNop())

	got := svc.Aggregate(context.Background(), []string{"tech"})

	if len(got) != maxNewsItems {
		t.Fatalf("len = %d, want %d", len(got), maxNewsItems)
	}
}

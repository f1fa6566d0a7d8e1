package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/models"
)

const (
	maxNewsItems       = 30
	dedupPrefixLength  = 50
	defaultNewsTimeout = 10 * time.Second
)

// NewsOutlet is one upstream source. Outlets have no secondary; a failing
// outlet simply contributes nothing to the batch.
type NewsOutlet interface {
	Name() string
	Topics() []string
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// NewsService fans out to the outlets whose topics intersect the caller's
// interests, concatenates in outlet order, dedups by normalized title
// prefix and truncates.
type NewsService struct {
	outlets  []NewsOutlet
	maxItems int
	logger   *zap.Logger
}

func NewNewsService(outlets []NewsOutlet, logger *zap.Logger) *NewsService {
	return &NewsService{
		outlets:  outlets,
		maxItems: maxNewsItems,
		logger:   logger,
	}
}

// Aggregate never fails: outlet errors are absorbed as empty contributions.
func (s *NewsService) Aggregate(ctx context.Context, interests []string) []models.NewsItem {
	selected := s.selectOutlets(interests)
	results := make([][]models.NewsItem, len(selected))

	p := pool.New().WithContext(ctx)
	for i, outlet := range selected {
		i, outlet := i, outlet
		p.Go(func(ctx context.Context) error {
			items, err := outlet.Fetch(ctx)
			if err != nil {
				s.logger.Warn("news outlet failed", zap.String("outlet", outlet.Name()), zap.Error(err))
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = p.Wait()

	var combined []models.NewsItem
	for _, items := range results {
		combined = append(combined, items...)
	}

	deduped := dedupNews(combined)
	if len(deduped) > s.maxItems {
		deduped = deduped[:s.maxItems]
	}
	return deduped
}

func (s *NewsService) selectOutlets(interests []string) []NewsOutlet {
	wanted := make(map[string]bool, len(interests))
	for _, in := range interests {
		wanted[strings.ToLower(strings.TrimSpace(in))] = true
	}

	var selected []NewsOutlet
	for _, outlet := range s.outlets {
		for _, topic := range outlet.Topics() {
			if wanted[strings.ToLower(topic)] {
				selected = append(selected, outlet)
				break
			}
		}
	}
	return selected
}

// dedupNews collapses items whose case-folded title prefixes match, first
// occurrence wins. Idempotent.
func dedupNews(items []models.NewsItem) []models.NewsItem {
	seen := make(map[string]bool, len(items))
	out := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		key := dedupKey(item.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func dedupKey(title string) string {
	folded := []rune(strings.ToLower(strings.TrimSpace(title)))
	if len(folded) > dedupPrefixLength {
		folded = folded[:dedupPrefixLength]
	}
	return string(folded)
}

// DefaultOutlets wires one feed per supported topic under a common base URL.
// An empty base URL yields no outlets; aggregation then returns no items.
func DefaultOutlets(feedBaseURL string) []NewsOutlet {
	if feedBaseURL == "" {
		return nil
	}
	base := strings.TrimRight(feedBaseURL, "/")
	return []NewsOutlet{
		NewJSONFeedOutlet("TechWire", base+"/feeds/tech.json", "tech", "programming"),
		NewJSONFeedOutlet("ScienceDaily", base+"/feeds/science.json", "science"),
		NewJSONFeedOutlet("MarketWatch", base+"/feeds/business.json", "business", "finance"),
		NewJSONFeedOutlet("SportsDesk", base+"/feeds/sports.json", "sports"),
		NewJSONFeedOutlet("WorldBrief", base+"/feeds/world.json", "world", "politics"),
	}
}

// JSONFeedOutlet fetches a JSON array of articles from a feed endpoint.
type JSONFeedOutlet struct {
	name   string
	topics []string
	url    string
	client *http.Client
}

func NewJSONFeedOutlet(name, feedURL string, topics ...string) *JSONFeedOutlet {
	return &JSONFeedOutlet{
		name:   name,
		topics: topics,
		url:    feedURL,
		client: &http.Client{Timeout: defaultNewsTimeout},
	}
}

func (o *JSONFeedOutlet) Name() string { return o.name }

func (o *JSONFeedOutlet) Topics() []string { return o.topics }

func (o *JSONFeedOutlet) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload []struct {
		Title       string    `json:"title"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	topic := ""
	if len(o.topics) > 0 {
		topic = o.topics[0]
	}

	items := make([]models.NewsItem, 0, len(payload))
	for _, a := range payload {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		items = append(items, models.NewsItem{
			Title:       a.Title,
			URL:         a.URL,
			Outlet:      o.name,
			Topic:       topic,
			PublishedAt: a.PublishedAt,
		})
	}
	return items, nil
}

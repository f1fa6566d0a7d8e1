package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/models"
)

const (
	bioMaxTokens         = 400
	descriptionMaxTokens = 120
	quoteMaxTokens       = 80
	maxSkillTags         = 8
)

// ContentBundle is the merged output of one generation pass, consumed by a
// single store update.
type ContentBundle struct {
	Bio                 string
	ProjectDescriptions map[string]string
	Quote               models.Quote
	Skills              []string
}

// ContentService runs biography, per-project descriptions and quote
// generation concurrently and merges them. Biography or quote failure is
// fatal for the bundle; a single project description failing degrades to a
// templated fallback while its siblings are unaffected.
type ContentService struct {
	gen    GenerationClient
	logger *zap.Logger
}

func NewContentService(gen GenerationClient, logger *zap.Logger) *ContentService {
	return &ContentService{gen: gen, logger: logger}
}

func (s *ContentService) GenerateBundle(ctx context.Context, profile *models.GitHubProfile, userBio string) (*ContentBundle, error) {
	if s.gen == nil {
		return nil, ErrGenerationUnavailable
	}
	if err := s.gen.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	bundle := &ContentBundle{
		ProjectDescriptions: make(map[string]string, len(profile.Repos)),
		Skills:              skillTags(profile.Repos),
	}

	p := pool.New().WithContext(ctx)

	p.Go(func(ctx context.Context) error {
		bio, err := s.gen.GenerateText(ctx, bioPrompt(profile, userBio), bioMaxTokens)
		if err != nil {
			return fmt.Errorf("%w: biography: %v", ErrGenerationUnavailable, err)
		}
		bundle.Bio = strings.TrimSpace(bio)
		return nil
	})

	p.Go(func(ctx context.Context) error {
		raw, err := s.gen.GenerateText(ctx, quotePrompt(profile), quoteMaxTokens)
		if err != nil {
			return fmt.Errorf("%w: quote: %v", ErrGenerationUnavailable, err)
		}
		bundle.Quote = parseQuote(raw)
		return nil
	})

	descs := make([]string, len(profile.Repos))
	p.Go(func(ctx context.Context) error {
		iter.ForEachIdx(profile.Repos, func(i int, repo *models.GitHubRepo) {
			text, err := s.gen.GenerateText(ctx, descriptionPrompt(repo), descriptionMaxTokens)
			if err != nil {
				s.logger.Warn("project description degraded to fallback",
					zap.String("repo", repo.Name), zap.Error(err))
				descs[i] = fallbackDescription(profile.User.Login, repo)
				return
			}
			descs[i] = strings.TrimSpace(text)
		})
		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	for i, repo := range profile.Repos {
		bundle.ProjectDescriptions[repo.Name] = descs[i]
	}
	return bundle, nil
}

func bioPrompt(profile *models.GitHubProfile, userBio string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short third-person biography for the developer %q.", profile.User.Login)
	if profile.User.Name != "" {
		fmt.Fprintf(&b, " Their name is %s.", profile.User.Name)
	}
	if userBio != "" {
		fmt.Fprintf(&b, " They describe themselves as: %s.", userBio)
	} else if profile.User.Bio != "" {
		fmt.Fprintf(&b, " Their GitHub bio reads: %s.", profile.User.Bio)
	}
	fmt.Fprintf(&b, " They have %d followers and %d public repositories worth mentioning.",
		profile.User.Followers, len(profile.Repos))
	b.WriteString(" Keep it to two paragraphs, plain text.")
	return b.String()
}

func descriptionPrompt(repo *models.GitHubRepo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one enthusiastic sentence describing the open source project %q", repo.Name)
	if repo.Language != "" {
		fmt.Fprintf(&b, " (written in %s)", repo.Language)
	}
	if repo.Description != "" {
		fmt.Fprintf(&b, ": %s", repo.Description)
	}
	b.WriteString(". Plain text, no markdown.")
	return b.String()
}

func quotePrompt(profile *models.GitHubProfile) string {
	return fmt.Sprintf(
		"Pick a real, short quote about software or craftsmanship that suits a developer like %q. "+
			"Answer with the quote on the first line and the author's name on the second line, nothing else.",
		profile.User.Login)
}

// fallbackDescription builds a usable blurb from fields we already have when
// generation fails for one project.
func fallbackDescription(login string, repo *models.GitHubRepo) string {
	if repo.Description != "" {
		return repo.Description
	}
	if repo.Language != "" {
		return fmt.Sprintf("%s is a %s project by %s.", repo.Name, repo.Language, login)
	}
	return fmt.Sprintf("%s is a project by %s.", repo.Name, login)
}

func parseQuote(raw string) models.Quote {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	q := models.Quote{Text: strings.Trim(strings.TrimSpace(lines[0]), `"“”`)}
	if len(lines) > 1 {
		q.Author = strings.TrimLeft(strings.TrimSpace(lines[len(lines)-1]), "-—– ")
	}
	if q.Author == "" {
		q.Author = "Unknown"
	}
	return q
}

// skillTags derives an ordered tag list from repository languages, most
// frequent first, ties broken alphabetically.
func skillTags(repos []models.GitHubRepo) []string {
	counts := make(map[string]int)
	for _, r := range repos {
		if r.Language != "" {
			counts[r.Language]++
		}
	}

	tags := make([]string, 0, len(counts))
	for lang := range counts {
		tags = append(tags, lang)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	if len(tags) > maxSkillTags {
		tags = tags[:maxSkillTags]
	}
	return tags
}

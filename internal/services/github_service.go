package services

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/models"
)

// ProfileSource supplies the externally sourced profile attributes a page is
// built from.
type ProfileSource interface {
	GetProfile(ctx context.Context, username string) (*models.GitHubProfile, error)
}

const maxProfileRepos = 12

// GitHubConfig carries the credentials for the profile source. A personal
// token raises the quota directly; an App id + private key + installation id
// mints short-lived installation tokens instead. Both are optional.
type GitHubConfig struct {
	BaseURL        string
	Token          string
	AppID          string
	InstallationID string
	PrivateKeyPEM  string
}

// GitHubService fetches a user and their repositories from the GitHub REST
// API. Transient failures are retried a bounded number of times; quota
// exhaustion surfaces as a RateLimitedError with the upstream's retry hint.
type GitHubService struct {
	cfg    GitHubConfig
	client *http.Client
	logger *zap.Logger
}

func NewGitHubService(cfg GitHubConfig, logger *zap.Logger) *GitHubService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	return &GitHubService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (s *GitHubService) GetProfile(ctx context.Context, username string) (*models.GitHubProfile, error) {
	token, err := s.resolveToken(ctx)
	if err != nil {
		// Elevated quota is optional; fall back to anonymous access.
		s.logger.Warn("github app token unavailable, using anonymous quota", zap.Error(err))
		token = ""
	}

	var user models.GitHubUser
	if err := s.getJSON(ctx, fmt.Sprintf("%s/users/%s", s.cfg.BaseURL, username), token, &user); err != nil {
		return nil, err
	}

	var repos []models.GitHubRepo
	reposURL := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d", s.cfg.BaseURL, username, maxProfileRepos)
	if err := s.getJSON(ctx, reposURL, token, &repos); err != nil {
		return nil, err
	}

	return &models.GitHubProfile{User: user, Repos: repos}, nil
}

func (s *GitHubService) getJSON(ctx context.Context, url, token string, out interface{}) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/vnd.github.v3+json")
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				return json.NewDecoder(resp.Body).Decode(out)
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrProfileNotFound)
			case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
				return retry.Unrecoverable(&RateLimitedError{RetryAfter: retryAfter(resp)})
			case resp.StatusCode >= 500:
				return fmt.Errorf("github api error: %s", resp.Status)
			default:
				return retry.Unrecoverable(fmt.Errorf("github api error: %s", resp.Status))
			}
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// retryAfter extracts the upstream retry hint: Retry-After seconds first,
// then the X-RateLimit-Reset epoch.
func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}

// resolveToken prefers a configured personal token; otherwise, when App
// credentials are present, mints a short-lived installation access token.
func (s *GitHubService) resolveToken(ctx context.Context) (string, error) {
	if s.cfg.Token != "" {
		return s.cfg.Token, nil
	}
	if s.cfg.AppID == "" || s.cfg.PrivateKeyPEM == "" || s.cfg.InstallationID == "" {
		return "", nil
	}

	block, _ := pem.Decode([]byte(s.cfg.PrivateKeyPEM))
	if block == nil {
		return "", fmt.Errorf("failed to parse github private key PEM")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.AppID,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}
	signedJWT, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", s.cfg.BaseURL, s.cfg.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+signedJWT)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("github api error: %s", resp.Status)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return result.Token, nil
}

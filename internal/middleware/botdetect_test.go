package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsBotUserAgent(t *testing.T) {
	cases := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"facebookexternalhit/1.1", true},
		{"Twitterbot/1.0", true},
		{"WhatsApp/2.19.81 A", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36", false},
		{"curl/8.4.0", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsBotUserAgent(tc.ua); got != tc.want {
			t.Errorf("IsBotUserAgent(%q) = %v, want %v", tc.ua, got, tc.want)
		}
	}
}

func TestBotDetectTagsContext(t *testing.T) {
	var flagged bool
	handler := BotDetect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flagged = IsBot(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/pages/octocat", nil)
	req.Header.Set("User-Agent", "Slackbot-LinkExpanding 1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !flagged {
		t.Error("bot user agent should be flagged")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/pages/octocat", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Chrome/126.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if flagged {
		t.Error("browser user agent should not be flagged")
	}
}

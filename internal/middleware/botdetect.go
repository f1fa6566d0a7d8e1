package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const botKey contextKey = "bot"

// botMarkers are matched as substrings of the lowercased User-Agent.
var botMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"slurp",
	"facebookexternalhit",
	"telegrambot",
	"whatsapp",
	"discordbot",
	"linkedinbot",
	"twitterbot",
	"preview",
}

// IsBotUserAgent reports whether the user agent looks like a crawler or a
// link-preview fetcher.
func IsBotUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

// BotDetect tags the request context so handlers can serve bots the cached
// record without triggering a refresh.
func BotDetect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsBotUserAgent(r.UserAgent()) {
			r = r.WithContext(context.WithValue(r.Context(), botKey, true))
		}
		next.ServeHTTP(w, r)
	})
}

// IsBot extracts the bot flag from the request context.
func IsBot(ctx context.Context) bool {
	flagged, ok := ctx.Value(botKey).(bool)
	return ok && flagged
}

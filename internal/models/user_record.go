package models

import (
	"strings"
	"time"
)

// RecordPatch is a nested partial update applied to a UserRecord. Maps merge
// recursively; arrays and scalars replace the stored value wholesale.
type RecordPatch = map[string]interface{}

// UserRecord is the canonical per-user document. The bson/json field names
// are the persisted layout; Identity is the addressing key and never appears
// inside the document body.
type UserRecord struct {
	Identity              string            `bson:"_id" json:"-"`
	Username              string            `bson:"username" json:"username"`
	City                  string            `bson:"city" json:"city"`
	Interests             []string          `bson:"interests" json:"interests"`
	UserBio               string            `bson:"userBio" json:"userBio"`
	Slug                  string            `bson:"slug" json:"slug"`
	GitHub                *GitHubUser       `bson:"github,omitempty" json:"github,omitempty"`
	Repos                 []GitHubRepo      `bson:"repos" json:"repos"`
	AIBio                 string            `bson:"aiBio" json:"aiBio"`
	AIProjectDescriptions map[string]string `bson:"aiProjectDescriptions" json:"aiProjectDescriptions"`
	AIQuote               *Quote            `bson:"aiQuote,omitempty" json:"aiQuote,omitempty"`
	AIBackgroundURL       string            `bson:"aiBackgroundUrl" json:"aiBackgroundUrl"`
	AICardImageURL        string            `bson:"aiCardImageUrl" json:"aiCardImageUrl"`
	Skills                []string          `bson:"skills" json:"skills"`
	Bookmarks             []Bookmark        `bson:"bookmarks" json:"bookmarks"`
	Timestamps            Timestamps        `bson:"timestamps" json:"timestamps"`
	CachedNews            []NewsItem        `bson:"cachedNews" json:"cachedNews"`
	CachedWeather         *WeatherReport    `bson:"cachedWeather,omitempty" json:"cachedWeather,omitempty"`
}

// Timestamps tracks the last refresh instant per content category plus the
// record's own lifecycle instants.
type Timestamps struct {
	Created        time.Time `bson:"created" json:"created"`
	Updated        time.Time `bson:"updated" json:"updated"`
	TextGenerated  time.Time `bson:"textGenerated,omitempty" json:"textGenerated,omitempty"`
	ImageGenerated time.Time `bson:"imageGenerated,omitempty" json:"imageGenerated,omitempty"`
	NewsUpdated    time.Time `bson:"newsUpdated,omitempty" json:"newsUpdated,omitempty"`
	WeatherUpdated time.Time `bson:"weatherUpdated,omitempty" json:"weatherUpdated,omitempty"`
}

// Bookmark order is always reindexed to array position on write.
type Bookmark struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	URL   string `bson:"url" json:"url"`
	Icon  string `bson:"icon" json:"icon"`
	Order int    `bson:"order" json:"order"`
}

type Quote struct {
	Text   string `bson:"text" json:"text"`
	Author string `bson:"author" json:"author"`
}

// ResolveIdentity derives the stable addressing key from a username.
func ResolveIdentity(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

type GeneratePageRequest struct {
	Username  string   `json:"username"`
	City      string   `json:"city"`
	Interests []string `json:"interests"`
	UserBio   string   `json:"userBio"`
}

func (r *GeneratePageRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Username) == "" {
		errors["username"] = "Username is required"
	}
	if len(r.Interests) > 10 {
		errors["interests"] = "At most 10 interests are allowed"
	}

	return errors
}

type ReplaceBookmarksRequest struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

func (r *ReplaceBookmarksRequest) Validate() map[string]string {
	errors := make(map[string]string)

	for _, b := range r.Bookmarks {
		if strings.TrimSpace(b.URL) == "" {
			errors["bookmarks"] = "Every bookmark needs a url"
			break
		}
	}

	return errors
}

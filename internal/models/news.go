package models

import "time"

type NewsItem struct {
	Title       string    `bson:"title" json:"title"`
	URL         string    `bson:"url" json:"url"`
	Outlet      string    `bson:"outlet" json:"outlet"`
	Topic       string    `bson:"topic" json:"topic"`
	PublishedAt time.Time `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
}

package models

// Artifact source tags, observable by callers for diagnostics.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceFallback  = "fallback"
)

type WeatherReport struct {
	Location    string  `bson:"location" json:"location"`
	Temperature float64 `bson:"temperature" json:"temperature"`
	Humidity    int     `bson:"humidity" json:"humidity"`
	Description string  `bson:"description" json:"description"`
	Source      string  `bson:"source" json:"source"`
}

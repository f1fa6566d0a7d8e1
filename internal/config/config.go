package config

import (
	"os"
)

type GitHubConfig struct {
	Token          string
	AppID          string
	InstallationID string
	PrivateKeyPEM  string
}

type GenerationConfig struct {
	BaseURL    string
	APIKey     string
	TextModel  string
	ImageModel string
}

type WeatherConfig struct {
	PrimaryURL   string
	PrimaryKey   string
	SecondaryURL string
}

type NewsConfig struct {
	FeedBaseURL string
}

type Config struct {
	ServerAddress string
	MongoURI      string
	MongoDB       string
	BlobDir       string
	RegionsFile   string
	GitHub        GitHubConfig
	Generation    GenerationConfig
	Weather       WeatherConfig
	News          NewsConfig
}

func Load() *Config {
	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDB:       getEnv("MONGODB_DATABASE", "gitfolio"),
		BlobDir:       getEnv("BLOB_DIR", "./blobs"),
		RegionsFile:   getEnv("REGIONS_FILE", "./configs/regions.yaml"),
		GitHub: GitHubConfig{
			Token:          getEnv("GITHUB_TOKEN", ""),
			AppID:          getEnv("GITHUB_APP_ID", ""),
			InstallationID: getEnv("GITHUB_APP_INSTALLATION_ID", ""),
			PrivateKeyPEM:  getEnv("GITHUB_APP_PRIVATE_KEY", ""),
		},
		Generation: GenerationConfig{
			BaseURL:    getEnv("GENERATION_BASE_URL", "https://api.openai.com"),
			APIKey:     getEnv("GENERATION_API_KEY", ""),
			TextModel:  getEnv("GENERATION_TEXT_MODEL", "gpt-4o-mini"),
			ImageModel: getEnv("GENERATION_IMAGE_MODEL", "dall-e-3"),
		},
		Weather: WeatherConfig{
			PrimaryURL:   getEnv("WEATHER_PRIMARY_URL", ""),
			PrimaryKey:   getEnv("WEATHER_PRIMARY_KEY", ""),
			SecondaryURL: getEnv("WEATHER_SECONDARY_URL", ""),
		},
		News: NewsConfig{
			FeedBaseURL: getEnv("NEWS_FEED_BASE_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

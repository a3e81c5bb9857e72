package config

import (
	"os"
	"path/filepath"
)

// Config carries every setting the data layer needs. It is passed explicitly
// into retrieval calls; nothing reads the environment after startup.
type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	// Finnhub
	FinnhubAPIKey  string `json:"finnhub_api_key"`
	FinnhubBaseURL string `json:"finnhub_base_url,omitempty"`
	UseFinnhubAPI  bool   `json:"use_finnhub_api"`

	// OnlineTools selects live Yahoo Finance data over local CSV snapshots
	// for indicator and price-window queries.
	OnlineTools  bool `json:"online_tools"`
	CacheEnabled bool `json:"cache_enabled"`

	// Longport (optional live candlestick source for the quote command)
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	resultsDir := os.Getenv("TRADEDATA_RESULTS_DIR")
	if resultsDir == "" {
		resultsDir = filepath.Join(currentDir, "results")
	}
	dataDir := os.Getenv("TRADEDATA_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(currentDir, "data")
	}

	return &Config{
		ProjectDir:   currentDir,
		ResultsDir:   resultsDir,
		DataDir:      dataDir,
		DataCacheDir: filepath.Join(dataDir, "cache"),

		FinnhubAPIKey: os.Getenv("FINNHUB_API_KEY"),
		UseFinnhubAPI: true,

		OnlineTools:  false,
		CacheEnabled: true,

		LongportAppKey:      os.Getenv("LONGPORT_APP_KEY"),
		LongportAppSecret:   os.Getenv("LONGPORT_APP_SECRET"),
		LongportAccessToken: os.Getenv("LONGPORT_ACCESS_TOKEN"),
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	dataSubdirs := []string{
		"market_data/price_data",
		"finnhub_data/news_data",
		"finnhub_data/insider_senti",
		"finnhub_data/insider_trans",
	}

	for _, subdir := range dataSubdirs {
		fullPath := filepath.Join(c.DataDir, subdir)
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return err
		}
	}

	return nil
}

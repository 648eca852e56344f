// Package config loads harvest settings from an INI file with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Env var holding the bearer token; overrides the config file value.
const tokenEnv = "BANGUMI_TOKEN"

// Config is everything a harvest run needs.
type Config struct {
	// Credentials for the remote API.
	Token     string
	UserAgent string

	// Crawl tunables.
	BatchSize   int
	StartOffset int

	// Unconditional pacing between subjects and pages.
	SubjectDelay time.Duration
	PageDelay    time.Duration

	// Output and cache files.
	AuthorFile       string
	MangaFile        string
	AuthorCacheFile  string
	SubjectCacheFile string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BatchSize:        30,
		StartOffset:      0,
		SubjectDelay:     500 * time.Millisecond,
		PageDelay:        time.Second,
		AuthorFile:       "manga_artists.json",
		MangaFile:        "manga_info.json",
		AuthorCacheFile:  "manga_artists_cache.json",
		SubjectCacheFile: "manga_info_cache.json",
	}
}

// Load reads path and applies env overrides. An empty path skips the file
// and uses defaults; a .env file in the working directory is honored when
// present.
func Load(path string) (Config, error) {
	c := Default()

	// Best effort: absence of a .env file is the normal case.
	_ = godotenv.Load()

	if path != "" {
		cfg, err := ini.Load(path)
		if err != nil {
			return c, fmt.Errorf("load config %s: %w", path, err)
		}

		sec := cfg.Section("bangumi")
		c.Token = sec.Key("token").String()
		c.UserAgent = sec.Key("user_agent").String()

		h := cfg.Section("harvest")
		c.BatchSize = h.Key("batch_size").MustInt(c.BatchSize)
		c.StartOffset = h.Key("start_offset").MustInt(c.StartOffset)
		c.SubjectDelay = h.Key("subject_delay").MustDuration(c.SubjectDelay)
		c.PageDelay = h.Key("page_delay").MustDuration(c.PageDelay)
		c.AuthorFile = h.Key("author_file").MustString(c.AuthorFile)
		c.MangaFile = h.Key("manga_file").MustString(c.MangaFile)
		c.AuthorCacheFile = h.Key("author_cache_file").MustString(c.AuthorCacheFile)
		c.SubjectCacheFile = h.Key("subject_cache_file").MustString(c.SubjectCacheFile)
	}

	if tok := os.Getenv(tokenEnv); tok != "" {
		c.Token = tok
	}

	if c.BatchSize <= 0 {
		return c, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.StartOffset < 0 {
		return c, fmt.Errorf("start_offset must not be negative, got %d", c.StartOffset)
	}
	return c, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amberdev/bangumi-harvest/internal/bangumiapi"
	"github.com/amberdev/bangumi-harvest/internal/config"
	"github.com/amberdev/bangumi-harvest/internal/harvest"
	"github.com/amberdev/bangumi-harvest/internal/idcache"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bangumi-harvest",
	Short: "Incrementally harvest manga and author metadata from Bangumi",
	Long: `bangumi-harvest walks the Bangumi comic collection page by page,
resolves each new work's authors, and accumulates both datasets as JSON
files. Two ID cache files make the crawl resumable: interrupt it at any
point and the next run picks up where it left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cfgFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&cfgFile,
		"config",
		"c",
		"",
		"path to config file",
	)
}

func newClient(cfg config.Config) *bangumiapi.Client {
	client := bangumiapi.NewClient(cfg.Token)
	if cfg.UserAgent != "" {
		client.SetUserAgent(cfg.UserAgent)
	}
	return client
}

func runHarvest(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	h := harvest.New(
		newClient(cfg),
		idcache.New(cfg.SubjectCacheFile),
		idcache.New(cfg.AuthorCacheFile),
		harvest.Config{
			BatchSize:    cfg.BatchSize,
			StartOffset:  cfg.StartOffset,
			SubjectDelay: cfg.SubjectDelay,
			PageDelay:    cfg.PageDelay,
			AuthorFile:   cfg.AuthorFile,
			MangaFile:    cfg.MangaFile,
		},
	)

	artists, err := h.Run(context.Background())
	fmt.Printf("Total artists processed: %d\n", len(artists))
	if err != nil {
		if errors.Is(err, bangumiapi.ErrRateLimited) {
			fmt.Println("Rate limited by the API; wait before retrying.")
		}
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}

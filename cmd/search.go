package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amberdev/bangumi-harvest/internal/bangumiapi"
	"github.com/amberdev/bangumi-harvest/internal/config"
)

var (
	searchPersons bool
	searchLimit   int
)

// searchCmd is a one-shot keyword search against the API, useful for
// finding the IDs the incremental crawl works with.
var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search subjects or persons by keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cfgFile, args[0])
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVarP(
		&searchPersons,
		"persons",
		"p",
		false,
		"search persons instead of subjects",
	)
	searchCmd.Flags().IntVarP(
		&searchLimit,
		"limit",
		"l",
		20,
		"maximum results",
	)
}

func runSearch(configPath, keyword string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := context.Background()

	if searchPersons {
		resp, err := client.SearchPersons(ctx, bangumiapi.PersonSearchRequest{
			Keyword: keyword,
			Filter:  &bangumiapi.SearchFilter{Careers: []string{"mangaka"}},
		}, searchLimit, 0)
		if err != nil {
			return fmt.Errorf("search persons: %w", err)
		}
		fmt.Printf("%d persons (showing %d):\n", resp.Total, len(resp.Data))
		for _, p := range resp.Data {
			fmt.Printf("  %d\t%s\n", p.ID, p.Name)
		}
		return nil
	}

	resp, err := client.SearchSubjects(ctx, bangumiapi.SubjectSearchRequest{
		Keyword: keyword,
		Filter:  &bangumiapi.SearchFilter{Types: []int{bangumiapi.SubjectTypeBook}},
		Sort:    "rank",
	}, searchLimit, 0)
	if err != nil {
		return fmt.Errorf("search subjects: %w", err)
	}
	fmt.Printf("%d subjects (showing %d):\n", resp.Total, len(resp.Data))
	for _, s := range resp.Data {
		fmt.Printf("  %d\t%s\t%s\n", s.ID, s.Name, s.NameCN)
	}
	return nil
}

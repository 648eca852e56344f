package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amberdev/bangumi-harvest/internal/authors"
)

var (
	lookupFile  string
	lookupFuzzy bool
)

// lookupCmd resolves an artist name or alias against the bundled reference
// dataset. Independent of the crawl.
var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Resolve an artist name against the bundled author dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(args[0])
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVarP(
		&lookupFile,
		"authors-file",
		"a",
		"",
		"path to an authors dataset (defaults to the bundled one)",
	)
	lookupCmd.Flags().BoolVarP(
		&lookupFuzzy,
		"fuzzy",
		"f",
		false,
		"fall back to fuzzy matching",
	)
}

func runLookup(name string) error {
	var (
		repo *authors.Repository
		err  error
	)
	if lookupFile != "" {
		repo, err = authors.NewRepositoryFromFile(lookupFile)
	} else {
		repo, err = authors.NewRepository()
	}
	if err != nil {
		return err
	}

	var (
		a  *authors.Author
		ok bool
	)
	if lookupFuzzy {
		a, ok = repo.Search(name)
	} else {
		a, ok = repo.FindByName(name)
	}
	if !ok {
		return fmt.Errorf("no author matching %q (dataset holds %d)", name, len(repo.All()))
	}

	fmt.Println(a.Name)
	if len(a.Aliases) > 0 {
		fmt.Printf("  aliases: %s\n", strings.Join(a.Aliases, ", "))
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amberdev/bangumi-harvest/internal/config"
	"github.com/amberdev/bangumi-harvest/internal/extract"
)

// subjectCmd fetches one subject and shows what the harvest would record
// for it.
var subjectCmd = &cobra.Command{
	Use:   "subject <id>",
	Short: "Fetch and print a single subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid subject id %q", args[0])
		}
		return runSubject(cfgFile, id)
	},
}

func init() {
	rootCmd.AddCommand(subjectCmd)
}

func runSubject(configPath string, id int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := context.Background()

	subject, err := client.GetSubject(ctx, id)
	if err != nil {
		return fmt.Errorf("get subject %d: %w", id, err)
	}

	persons, err := client.GetSubjectPersons(ctx, id)
	if err != nil {
		return fmt.Errorf("get persons for subject %d: %w", id, err)
	}
	authors := extract.FilterAuthors(persons)
	rec := extract.NewMangaRecord(subject, authors)

	fmt.Printf("%d  %s  %s\n", rec.ID, rec.Name, rec.NameCN)
	fmt.Printf("  date: %s  nsfw: %v\n", rec.Date, rec.NSFW)
	fmt.Printf("  tags: %s\n", strings.Join(rec.Tags, ", "))
	fmt.Printf("  aliases: %s\n", strings.Join(rec.Aliases, ", "))
	for i := range rec.AuthorNames {
		fmt.Printf("  author: %s (%d)\n", rec.AuthorNames[i], rec.AuthorIDs[i])
	}
	return nil
}

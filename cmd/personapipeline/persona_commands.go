package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"PersonaPipeline/internal/usecase"
)

func newPersonaCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newCreateCommand(ctx),
		newRefreshCommand(ctx),
		newReanalyzeCommand(ctx),
		newListCommand(ctx),
		newContentCommand(ctx),
		newDeleteCommand(ctx),
	}
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		platform   string
		twitterURL string
		maxVideos  int
	)

	cmd := &cobra.Command{
		Use:   "create <name> <source-url>",
		Short: "Create a persona and run its full pipeline in the foreground",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := application.Personas().CreateAndRun(cmd.Context(), usecase.CreateRequest{
				Name:       args[0],
				SourceURL:  args[1],
				Platform:   platform,
				MaxVideos:  maxVideos,
				TwitterURL: twitterURL,
			})
			if report.RunID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "youtube", "Source platform: youtube, twitter or both")
	cmd.Flags().StringVar(&twitterURL, "twitter-url", "", "Twitter profile URL for platform both")
	cmd.Flags().IntVar(&maxVideos, "max-videos", 0, "Maximum videos to process (default from config)")
	return cmd
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <slug>",
		Short: "Process new content for a persona and rebuild its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := application.Personas().RefreshAndWait(cmd.Context(), args[0])
			if report.RunID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			}
			return err
		},
	}
}

func newReanalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze <slug>",
		Short: "Rebuild a persona profile from stored transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := application.Personas().ReanalyzeAndWait(cmd.Context(), args[0])
			if report.RunID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			}
			return err
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			personas, err := application.Personas().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(personas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No personas")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Slug", "Platform", "Status", "Content", "Words", "Updated"},
				buildPersonaRows(personas),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newContentCommand(ctx *commandContext) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "content <slug>",
		Short: "List a persona's content items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			page, err := application.Personas().Content(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "Status", "Words", "Title"},
				buildContentRows(page.Content),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d items\n", len(page.Content), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Items to skip")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a persona with its content and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := application.Personas().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Persona '%s' deleted\n", args[0])
			return nil
		},
	}
}

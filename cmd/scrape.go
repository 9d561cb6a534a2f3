package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/scraper"
)

var (
	scrapeSources    []string
	scrapeCategories []string
	scrapeMaxPages   int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a scraping session and wait for it to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := scraper.StartOptions{
			Categories: scrapeCategories,
			MaxPages:   scrapeMaxPages,
			Type:       model.SessionManual,
		}
		for _, raw := range scrapeSources {
			source, err := model.ParseSource(raw)
			if err != nil {
				return err
			}
			opts.Sources = append(opts.Sources, source)
		}

		handle, err := env.Scraper.Start(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "start scrape")
		}
		zap.L().Info("scraping session started", zap.String("session", handle.SessionID))

		// Ctrl-C requests a cooperative stop; the run still closes its
		// session and reports a summary.
		go func() {
			<-ctx.Done()
			env.Scraper.Stop()
		}()

		summary := <-handle.Done

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "encode summary")
		}
		if summary.Status == model.SessionFailed {
			return eris.New("scraping session failed")
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "source", nil, "source to scrape (repeatable; default all enabled)")
	scrapeCmd.Flags().StringSliceVar(&scrapeCategories, "category", nil, "category override (repeatable)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "cap pages per category below the configured maximum")
	rootCmd.AddCommand(scrapeCmd)
}

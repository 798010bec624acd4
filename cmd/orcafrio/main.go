// Package main provides the orcafrio binary: quote generation, catalog
// validation and the HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/friocalc/orcafrio/internal/catalog"
	"github.com/friocalc/orcafrio/internal/check"
	"github.com/friocalc/orcafrio/internal/config"
	"github.com/friocalc/orcafrio/internal/db"
	"github.com/friocalc/orcafrio/internal/migrations"
	"github.com/friocalc/orcafrio/internal/pricing"
	"github.com/friocalc/orcafrio/internal/quote"
	"github.com/friocalc/orcafrio/internal/server"
	"github.com/friocalc/orcafrio/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:           "orcafrio",
		Short:         "Geracao e validacao de orcamentos de climatizacao",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newQuoteCommand(logger))
	root.AddCommand(newValidateCommand(logger))

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadCatalog(cfg config.Config, logger *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load catalogs from %s: %w", cfg.CatalogDir, err)
	}
	return cat, nil
}

func newServeCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			cat, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			rules, err := check.LoadRules(cfg.RulesFile)
			if err != nil {
				return err
			}

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			if err := migrations.Up(database); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			srv := server.New(cat, rules, store.New(database), logger)
			addr := ":" + cfg.Port
			logger.Info("listening", zap.String("addr", addr))
			return http.ListenAndServe(addr, srv.Router())
		},
	}
}

func newQuoteCommand(logger *zap.Logger) *cobra.Command {
	var scopePath, outPath string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Expand and price a scope document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			cat, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			rules, err := check.LoadRules(cfg.RulesFile)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(scopePath)
			if err != nil {
				return fmt.Errorf("read scope %s: %w", scopePath, err)
			}
			var scope quote.Scope
			if err := json.Unmarshal(data, &scope); err != nil {
				return fmt.Errorf("parse scope %s: %w", scopePath, err)
			}

			doc, err := quote.Generate(cat, scope, logger,
				pricing.WithStaleThresholds(rules.Staleness.AlertDays, rules.Staleness.CriticalDays))
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode budget: %w", err)
			}

			if outPath == "" || outPath == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			if err := os.WriteFile(outPath, append(out, '\n'), 0o644); err != nil {
				return fmt.Errorf("write budget %s: %w", outPath, err)
			}
			logger.Info("budget written", zap.String("path", outPath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&scopePath, "input", "i", "", "scope JSON file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "-", "budget output file, - for stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newValidateCommand(logger *zap.Logger) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the catalog integrity checks",
		Long:  "Validates the composition catalog. Exits with code 1 when any error-severity finding exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			cat, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			rules, err := check.LoadRules(cfg.RulesFile)
			if err != nil {
				return err
			}

			report := check.New(rules).Run(cat)

			switch format {
			case "json":
				out, err := report.JSON()
				if err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case "md":
				fmt.Fprint(cmd.OutOrStdout(), report.Markdown())
			default:
				return fmt.Errorf("unknown format %q, want json or md", format)
			}

			if report.HasErrors() {
				return fmt.Errorf("catalog has %d error finding(s)", report.Summary.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "report format: json or md")
	return cmd
}

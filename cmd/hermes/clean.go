package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clearlink-hq/hermes/pkg/cli"
	"clearlink-hq/hermes/pkg/config"
	"clearlink-hq/hermes/pkg/expander"
	"clearlink-hq/hermes/pkg/fallback"
	"clearlink-hq/hermes/pkg/pipeline"
	"clearlink-hq/hermes/pkg/sanitizer"
	"clearlink-hq/hermes/pkg/telemetry/logging"
)

var cleanFlags struct {
	format   string
	referral bool
	expand   bool
	ai       bool
}

var cleanCmd = &cobra.Command{
	Use:   "clean URL [URL...]",
	Short: "Clean one or more URLs from the command line",
	Long: `Clean one or more URLs without starting the server.

The rule catalogue is loaded from the configured source (the public
ClearURLs catalogue by default), each URL is cleaned, and the result is
printed to stdout.

Examples:
  # Strip tracking parameters
  hermes clean "https://example.com/p?id=1&utm_source=mail"

  # Also strip referral marketing parameters and expand shorteners
  hermes clean --referral --expand "https://bit.ly/abc123"

  # Machine-readable output
  hermes clean --format json "https://example.com/p?fbclid=x"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVarP(&cleanFlags.format, "format", "f", "text", "output format (text, json)")
	cleanCmd.Flags().BoolVar(&cleanFlags.referral, "referral", false, "also remove referral marketing parameters")
	cleanCmd.Flags().BoolVar(&cleanFlags.expand, "expand", false, "expand allowlisted shortener links first")
	cleanCmd.Flags().BoolVar(&cleanFlags.ai, "ai", false, "escalate unknown parameters to the inference fallback")
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewCommandError("clean", err)
	}
	cfg.Telemetry.Logging.Level = "error"
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logger, err := logging.New(&cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return cli.NewCommandError("clean", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	ruleStore, err := buildRuleStore(cfg, noopCollector(), logger)
	if err != nil {
		return cli.NewCommandError("clean", err)
	}
	if err := ruleStore.Start(ctx); err != nil {
		return cli.NewCommandError("clean", err)
	}
	defer ruleStore.Stop()

	deps := pipeline.Deps{
		Sanitizer: sanitizer.New(ruleStore, logger),
		Logger:    logger,
	}
	if cleanFlags.expand {
		deps.Expander = expander.New(&expander.Config{
			Allowlist:     cfg.Expander.Allowlist,
			MaxHops:       cfg.Expander.MaxHops,
			PerHopTimeout: cfg.Expander.PerHopTimeout,
			TotalTimeout:  cfg.Expander.TotalTimeout,
		}, nil, logger)
	}
	if cleanFlags.ai && cfg.Fallback.Endpoint != "" {
		deps.Fallback = fallback.New(&fallback.Config{
			Endpoint: cfg.Fallback.Endpoint,
			Timeout:  cfg.Fallback.Timeout,
			MaxKeys:  cfg.Fallback.MaxKeys,
		}, nil, logger)
	}
	p, err := pipeline.New(deps)
	if err != nil {
		return cli.NewCommandError("clean", err)
	}

	formatter := cli.NewFormatter(cli.OutputFormat(cleanFlags.format))
	for _, rawURL := range args {
		result, err := p.Clean(ctx, &pipeline.Request{
			URL:                     rawURL,
			RemoveReferralMarketing: &cleanFlags.referral,
			AllowAIFallback:         &cleanFlags.ai,
		})
		if err != nil {
			return cli.NewCommandError("clean", err)
		}

		if cleanFlags.format == "json" {
			if err := formatter.FormatTo(os.Stdout, result); err != nil {
				return cli.NewCommandError("clean", err)
			}
			continue
		}

		fmt.Println(result.CleanedURL)
		if verbose {
			for _, removal := range result.Removals {
				fmt.Fprintf(os.Stderr, "  removed %s (%s)\n", removal.Key, removal.Source)
			}
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"clearlink-hq/hermes/pkg/cli"
	"clearlink-hq/hermes/pkg/config"
	"clearlink-hq/hermes/pkg/rules"
	"clearlink-hq/hermes/pkg/telemetry/logging"
	"clearlink-hq/hermes/pkg/telemetry/metrics"
)

var rulesFlags struct {
	source string
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule documents",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compile a rule document and report problems",
	Long: `Fetch and compile a rule document without installing it.

A document that fails to compile is rejected as a whole; the error names
the offending provider and pattern.

Examples:
  hermes rules validate
  hermes rules validate --source /etc/hermes/rules.json`,
	RunE: runRulesValidate,
}

var rulesFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the raw rule document and print it to stdout",
	RunE:  runRulesFetch,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show [provider]",
	Short: "Show the compiled catalogue or one provider",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesShow,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd, rulesFetchCmd, rulesShowCmd)

	rulesCmd.PersistentFlags().StringVarP(&rulesFlags.source, "source", "s", "", "rule document source (URL or file path, overrides config)")
	rulesShowCmd.Flags().StringVarP(&rulesFlags.format, "format", "f", "text", "output format (text, json)")
}

func fetchDocument(ctx context.Context) ([]byte, *config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if rulesFlags.source != "" {
		cfg.Rules.Source = rulesFlags.source
	}

	logger, err := logging.New(&config.LoggingConfig{Level: "error", Format: "text"}, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	doc, err := newRuleSource(cfg, logger).Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	return doc, cfg, nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	doc, cfg, err := fetchDocument(ctx)
	if err != nil {
		return cli.NewCommandError("rules validate", err)
	}

	rs, err := rules.Compile(doc)
	if err != nil {
		return cli.NewCommandError("rules validate", err)
	}

	fmt.Printf("valid: %d providers from %s\n", rs.ProviderCount(), cfg.Rules.Source)
	return nil
}

func runRulesFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	doc, _, err := fetchDocument(ctx)
	if err != nil {
		return cli.NewCommandError("rules fetch", err)
	}
	if _, err := os.Stdout.Write(doc); err != nil {
		return cli.NewCommandError("rules fetch", err)
	}
	return nil
}

// providerSummary is the per-provider view of rules show.
type providerSummary struct {
	Name         string `json:"name"`
	Rules        int    `json:"rules"`
	Referral     int    `json:"referral_rules"`
	RawRules     int    `json:"raw_rules"`
	Redirections int    `json:"redirections"`
	Exceptions   int    `json:"exceptions"`
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	doc, _, err := fetchDocument(ctx)
	if err != nil {
		return cli.NewCommandError("rules show", err)
	}
	rs, err := rules.Compile(doc)
	if err != nil {
		return cli.NewCommandError("rules show", err)
	}

	summaries := make([]providerSummary, 0, len(rs.Providers))
	for _, p := range rs.Providers {
		if len(args) == 1 && p.Name != args[0] {
			continue
		}
		summaries = append(summaries, providerSummary{
			Name:         p.Name,
			Rules:        len(p.Rules),
			Referral:     len(p.ReferralMarketing),
			RawRules:     len(p.RawRules),
			Redirections: len(p.Redirections),
			Exceptions:   len(p.Exceptions),
		})
	}
	if len(args) == 1 && len(summaries) == 0 {
		return cli.NewCommandError("rules show", fmt.Errorf("unknown provider: %s", args[0]))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	if rulesFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, summaries)
	}
	for _, s := range summaries {
		fmt.Printf("%-40s rules=%d referral=%d raw=%d redirections=%d exceptions=%d\n",
			s.Name, s.Rules, s.Referral, s.RawRules, s.Redirections, s.Exceptions)
	}
	return nil
}

// noopCollector returns a disabled metrics collector for one-shot
// commands.
func noopCollector() *metrics.Collector {
	return metrics.NewCollector(&metrics.Config{Enabled: false}, nil)
}

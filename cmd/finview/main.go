// finview - company profile lookup and income statement filtering over the
// Financial Modeling Prep API.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/seenimoa/finview/api"
	"github.com/seenimoa/finview/internal/config"
	"github.com/seenimoa/finview/internal/income"
	"github.com/seenimoa/finview/internal/logging"
	"github.com/seenimoa/finview/internal/profile"
	"github.com/seenimoa/finview/internal/provider"
	"github.com/seenimoa/finview/internal/providers"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command's PersistentPreRunE.
var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finview",
	Short: "finview - company profiles and income statements from FMP",
	Long: `finview proxies the Financial Modeling Prep API.
It looks company profiles up from the bulk profile list, fetches a
company's annual income statement, and filters and sorts it by year,
revenue and net income.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(incomeCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("finview %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		up, err := providers.NewUpstream(cfg.Upstream, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := api.NewServer(cfg, up, logger)
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Profile Command ---

var profileCmd = &cobra.Command{
	Use:   "profile [symbol]",
	Short: "Look a company profile up by symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, err := symbolArg(args)
		if err != nil {
			return err
		}
		up, err := providers.NewUpstream(cfg.Upstream, logger)
		if err != nil {
			return err
		}
		profiles := profile.NewCache(up, logger)
		if err := profiles.EnsureLoaded(cmd.Context()); err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		p, err := profiles.FindBySymbol(symbol)
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

// --- Income Command ---

var incomeCmd = &cobra.Command{
	Use:   "income [symbol]",
	Short: "Fetch, filter and sort a company's annual income statement",
	Long: `Fetch a company's annual income statement and optionally filter and sort it.

Examples:
  finview income AAPL
  finview income AAPL --start-year 2020 --end-year 2023
  finview income MSFT --min-revenue 1e11 --max-revenue 3e11 --sort netIncome --desc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, err := symbolArg(args)
		if err != nil {
			return err
		}
		criteria, spec, err := incomeFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if err := criteria.Validate(); err != nil {
			return err
		}

		up, err := providers.NewUpstream(cfg.Upstream, logger)
		if err != nil {
			return err
		}
		stmts, err := up.FetchIncomeStatement(cmd.Context(), symbol)
		if err != nil {
			return err
		}
		out, err := income.Run(stmts, criteria, spec)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	addIncomeFlags(incomeCmd.Flags())
}

func addIncomeFlags(f *pflag.FlagSet) {
	f.Int("start-year", 0, "first fiscal year to keep (needs --end-year)")
	f.Int("end-year", 0, "last fiscal year to keep (needs --start-year)")
	f.Float64("min-revenue", 0, "minimum revenue (needs --max-revenue)")
	f.Float64("max-revenue", 0, "maximum revenue (needs --min-revenue)")
	f.Float64("min-income", 0, "minimum net income (needs --max-income)")
	f.Float64("max-income", 0, "maximum net income (needs --min-income)")
	f.String("sort", "", "sort field: date, revenue or netIncome")
	f.Bool("desc", false, "sort descending")
}

// incomeFlags turns the income command's flags into pipeline inputs. Only
// flags the user set become bounds.
func incomeFlags(f *pflag.FlagSet) (income.Criteria, *income.SortSpec, error) {
	var c income.Criteria

	intFlag := func(name string) *int {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		return &v
	}
	floatFlag := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}

	c.StartYear = intFlag("start-year")
	c.EndYear = intFlag("end-year")
	c.MinRevenue = floatFlag("min-revenue")
	c.MaxRevenue = floatFlag("max-revenue")
	c.MinIncome = floatFlag("min-income")
	c.MaxIncome = floatFlag("max-income")

	field, _ := f.GetString("sort")
	if field == "" {
		return c, nil, nil
	}
	sf, err := income.ParseSortField(field)
	if err != nil {
		return c, nil, err
	}
	desc, _ := f.GetBool("desc")
	return c, &income.SortSpec{Field: sf, Ascending: !desc}, nil
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  finview - System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Upstream:      %s\n", cfg.Upstream.BaseURL)
		fmt.Printf("    Timeout:       %s\n", cfg.Upstream.Timeout)
		fmt.Printf("    Rate Limit:    %d req/s\n", cfg.Upstream.RateLimit)
		fmt.Printf("    Cache TTL:     %s\n", cfg.Upstream.CacheTTL)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Printf("    Logging:       %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			up, err := providers.NewUpstream(cfg.Upstream, logger)
			if err != nil {
				return err
			}
			fmt.Println()
			if err := up.Ping(cmd.Context()); err != nil {
				fmt.Printf("  Upstream:      unreachable (%v)\n", err)
			} else {
				fmt.Println("  Upstream:      reachable")
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check connectivity to the upstream API")
}

// symbolArg returns the trimmed symbol argument, rejecting a blank one
// before any upstream call is made.
func symbolArg(args []string) (string, error) {
	symbol := strings.TrimSpace(args[0])
	if symbol == "" {
		return "", &provider.ErrMissingParam{Param: "symbol"}
	}
	return symbol, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

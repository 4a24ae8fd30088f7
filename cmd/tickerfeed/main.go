package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/app"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
	"github.com/ternarybob/tickerfeed/internal/services/market"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	logLevel    = flag.String("log-level", "", "Log level (overrides config)")
	headed      = flag.Bool("headed", false, "Run the scraper browser with a visible window")
	subjectID   = flag.String("subject", "", "Cache subject identifier for ratios/quarterly (defaults to the ticker)")
	limit       = flag.Int("limit", 10, "Maximum number of suggestions")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: tickerfeed [flags] <command> [args]

Commands:
  quote <ticker>...       Live price for each ticker
  resolve <ticker>        Resolve a ticker to its company
  ratios <ticker>         Financial ratios (cached per day)
  quarterly <ticker>      Quarterly results (cached per day)
  suggest <query>         Search known companies
  watch                   Refresh [refresh] tickers on the configured schedule
  version                 Print version information

Flags:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if *showVersion || flag.Arg(0) == "version" {
		fmt.Printf("TickerFeed version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("tickerfeed.toml"); err == nil {
			configFiles = append(configFiles, "tickerfeed.toml")
		} else if _, err := os.Stat("deployments/local/tickerfeed.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/tickerfeed.toml")
		}
	}

	// 1. Load configuration (defaults -> file1 -> file2 -> ... -> env)
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	// 2. Apply command-line flag overrides (highest priority)
	var headless *bool
	if *headed {
		h := false
		headless = &h
	}
	common.ApplyFlagOverrides(config, *logLevel, headless)

	if err := config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// 3. Initialize logger with final configuration
	logger := common.SetupLogger(config)

	// 4. Print banner
	common.PrintBanner(config, logger)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, application, flag.Arg(0), flag.Args()[1:])
	stop()

	application.Close()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, command string, args []string) int {
	switch command {
	case "quote":
		if len(args) == 0 {
			return usageError("quote requires at least one ticker")
		}
		results := a.Market.RefreshQuotes(ctx, args)
		failed := printQuoteResults(results)
		if failed == len(results) {
			return 1
		}
		return 0

	case "resolve":
		if len(args) != 1 {
			return usageError("resolve requires one ticker")
		}
		resolved, err := a.Resolver.ResolveTicker(ctx, args[0])
		return printResult(a.Logger, resolved, err)

	case "ratios":
		if len(args) != 1 {
			return usageError("ratios requires one ticker")
		}
		result, err := a.Market.GetRatios(ctx, *subjectID, args[0])
		return printResult(a.Logger, result, err)

	case "quarterly":
		if len(args) != 1 {
			return usageError("quarterly requires one ticker")
		}
		result, err := a.Market.GetQuarterly(ctx, *subjectID, args[0])
		return printResult(a.Logger, result, err)

	case "suggest":
		if len(args) == 0 {
			return usageError("suggest requires a query")
		}
		suggestions, err := a.Companies.Suggest(ctx, strings.Join(args, " "), *limit)
		return printResult(a.Logger, map[string]any{"suggestions": suggestions}, err)

	case "watch":
		if err := a.StartScheduler(func(results []market.QuoteResult) { printQuoteResults(results) }); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to start scheduler")
			return 1
		}
		a.Logger.Info().Msg("Watching - Press Ctrl+C to stop")
		a.Scheduler.RunOnce(ctx)
		<-ctx.Done()
		a.Logger.Info().Msg("Interrupt signal received")
		return 0
	}

	return usageError(fmt.Sprintf("unknown command %q", command))
}

func usageError(msg string) int {
	fmt.Fprintf(os.Stderr, "tickerfeed: %s\n\n", msg)
	flag.Usage()
	return 2
}

// printResult writes v as JSON, or logs err as "data unavailable" and returns a failure code
func printResult(logger arbor.ILogger, v any, err error) int {
	if err != nil {
		logger.Error().Str("kind", string(models.KindOf(err))).Err(err).Msg("Data unavailable")
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to write output")
		return 1
	}
	return 0
}

// quoteLine is the JSON form of one refresh result
type quoteLine struct {
	Ticker string             `json:"ticker"`
	Quote  *models.StockPrice `json:"quote,omitempty"`
	Error  string             `json:"error,omitempty"`
	Kind   string             `json:"kind,omitempty"`
}

func printQuoteResults(results []market.QuoteResult) int {
	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, r := range results {
		line := quoteLine{Ticker: r.Ticker, Quote: r.Price}
		if r.Err != nil {
			failed++
			line.Error = r.Err.Error()
			line.Kind = string(models.KindOf(r.Err))
		}
		_ = enc.Encode(line)
	}
	return failed
}

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dyike/TradeDataGo/internal/config"
	"github.com/dyike/TradeDataGo/internal/dataflows"
	"github.com/dyike/TradeDataGo/internal/pdf"
	"github.com/dyike/TradeDataGo/internal/utils"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	// .env is optional, environment variables win either way
	_ = godotenv.Load()

	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tradedata",
		Short: "TradeDataGo - Market Data Retrieval and Reporting",
		Long: `TradeDataGo retrieves company news, insider activity, fundamentals and
price data from live providers with transparent fallback to local snapshots,
and renders them as markdown and PDF reports.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newReportCmd(cfg))
	rootCmd.AddCommand(newPdfCmd(cfg))
	rootCmd.AddCommand(newQuoteCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newReportCmd creates the report command
func newReportCmd(cfg *config.Config) *cobra.Command {
	var (
		date       string
		lookBack   int
		indicators []string
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "report [SYMBOL...]",
		Short: "Retrieve data and write markdown reports for one or more symbols",
		Long: `Retrieve news, insider sentiment, insider transactions, company profile,
basic financials, market data and technical indicators for each symbol, and
write the reports under results/{SYMBOL}/{date}/reports/.
Example: tradedata report AAPL NVDA --date=2025-07-24 --look-back=7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := args
			if len(symbols) == 0 {
				ticker, err := PromptForTicker()
				if err != nil {
					return err
				}
				symbols = []string{ticker}
			}
			if date == "" {
				var err error
				date, err = PromptForDate()
				if err != nil {
					return err
				}
			}
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
			}

			return runReportCommand(cfg, symbols, date, lookBack, indicators, parallel)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Retrieval date in YYYY-MM-DD format (prompted if not provided)")
	cmd.Flags().IntVar(&lookBack, "look-back", 7, "Look-back window in days")
	cmd.Flags().StringSliceVar(&indicators, "indicators", nil, "Technical indicators to report (default: a standard set)")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Maximum symbols processed concurrently")

	return cmd
}

func runReportCommand(cfg *config.Config, symbols []string, date string, lookBack int, indicators []string, parallel int) error {
	printTitle("TradeDataGo Report")
	printDim("date=%s look-back=%d symbols=%s", date, lookBack, strings.Join(symbols, ","))

	df := dataflows.New(cfg)
	ctx := context.Background()

	results, err := df.BatchReports(ctx, symbols, date, lookBack, parallel, indicators)
	if err != nil {
		printError("retrieval failed: %v", err)
		return err
	}

	for symbol, reports := range results {
		dir := filepath.Join(cfg.ResultsDir, symbol, date, "reports")
		names := make([]string, 0, len(reports))
		for name := range reports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := utils.WriteMarkdown(dir, name+".md", reports[name]); err != nil {
				return err
			}
		}
		printSuccess("%s: %d reports written to %s", symbol, len(reports), dir)
	}

	return nil
}

// newPdfCmd creates the pdf command
func newPdfCmd(cfg *config.Config) *cobra.Command {
	var (
		symbol string
		date   string
		latest bool
		list   bool
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Convert stored markdown reports to PDF",
		Long: `Convert the markdown reports of stored analyses to PDF files under
results/{SYMBOL}/{date}/reports_pdf/.
Example: tradedata pdf --symbol=AAPL --date=2025-07-24`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case list:
				return runPdfList(cfg)
			case all:
				return runPdfAll(cfg)
			case latest:
				analysis, err := pdf.FindLatestAnalysis(cfg.ResultsDir, symbol)
				if err != nil {
					return err
				}
				return runPdfOne(cfg, analysis.Symbol, analysis.Date)
			case symbol != "" && date != "":
				return runPdfOne(cfg, strings.ToUpper(symbol), date)
			default:
				return fmt.Errorf("specify --symbol and --date, or one of --latest, --list, --all")
			}
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol of the analysis to convert")
	cmd.Flags().StringVar(&date, "date", "", "Date of the analysis to convert (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&latest, "latest", false, "Convert the most recent analysis (optionally filtered by --symbol)")
	cmd.Flags().BoolVar(&list, "list", false, "List stored analyses")
	cmd.Flags().BoolVar(&all, "all", false, "Convert every stored analysis")

	return cmd
}

func runPdfList(cfg *config.Config) error {
	analyses, err := pdf.ListAnalyses(cfg.ResultsDir)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		printWarn("no stored analyses under %s", cfg.ResultsDir)
		return nil
	}
	printHeader("Stored analyses:")
	for _, a := range analyses {
		fmt.Printf("  %-8s %s\n", a.Symbol, a.Date)
	}
	return nil
}

func runPdfAll(cfg *config.Config) error {
	analyses, err := pdf.ListAnalyses(cfg.ResultsDir)
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		printWarn("no stored analyses under %s", cfg.ResultsDir)
		return nil
	}
	for _, a := range analyses {
		if err := runPdfOne(cfg, a.Symbol, a.Date); err != nil {
			printError("%s %s: %v", a.Symbol, a.Date, err)
		}
	}
	return nil
}

func runPdfOne(cfg *config.Config, symbol, date string) error {
	files, err := pdf.GenerateReports(cfg.ResultsDir, symbol, date)
	if err != nil {
		return err
	}
	printSuccess("%s %s: %d PDFs generated", symbol, date, len(files))
	for _, f := range files {
		printDim("  %s", f)
	}
	return nil
}

// newQuoteCmd creates the quote command
func newQuoteCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [SYMBOL]",
		Short: "Show a latest quote for a symbol",
		Long: `Show the latest daily bar for a symbol. Uses Longport when credentials
are configured, Yahoo Finance otherwise.
Example: tradedata quote AAPL`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuoteCommand(cfg, strings.ToUpper(args[0]))
		},
	}
	return cmd
}

func runQuoteCommand(cfg *config.Config, symbol string) error {
	if cfg.LongportAppKey != "" {
		lc, err := dataflows.NewLongportClient(cfg)
		if err == nil {
			defer lc.Close()
			candles, err := lc.DailyCandles(context.Background(), symbol, 1)
			if err == nil && len(candles) > 0 {
				c := candles[len(candles)-1]
				printHeader(fmt.Sprintf("%s (longport)", symbol))
				fmt.Printf("Open: %s  High: %s  Low: %s  Close: %s  Volume: %d\n",
					c.Open, c.High, c.Low, c.Close, c.Volume)
				return nil
			}
			printWarn("longport quote failed, trying yahoo: %v", err)
		} else {
			printWarn("longport unavailable, trying yahoo: %v", err)
		}
	}

	yc := dataflows.NewYahooClient(cfg)
	bar, err := yc.Quote(symbol)
	if err != nil {
		return fmt.Errorf("quote for %s: %w", symbol, err)
	}
	printHeader(fmt.Sprintf("%s (yahoo)", symbol))
	fmt.Printf("Open: %.2f  High: %.2f  Low: %.2f  Close: %.2f  Volume: %d\n",
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	return nil
}

// newConfigCmd creates the config command
func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})

	return cmd
}

func showConfig(cfg *config.Config) {
	printHeader("TradeDataGo Configuration")
	fmt.Printf("Project Dir:     %s\n", cfg.ProjectDir)
	fmt.Printf("Results Dir:     %s\n", cfg.ResultsDir)
	fmt.Printf("Data Dir:        %s\n", cfg.DataDir)
	fmt.Printf("Data Cache Dir:  %s\n", cfg.DataCacheDir)
	fmt.Println()
	fmt.Printf("Online Tools:    %t\n", cfg.OnlineTools)
	fmt.Printf("Cache Enabled:   %t\n", cfg.CacheEnabled)
	fmt.Printf("Use Finnhub API: %t\n", cfg.UseFinnhubAPI)
	fmt.Println()
	if cfg.FinnhubAPIKey != "" {
		printSuccess("Finnhub API:     configured")
	} else {
		printWarn("Finnhub API:     not configured (cached snapshots only)")
	}
	if cfg.LongportAppKey != "" {
		printSuccess("Longport API:    configured")
	} else {
		printWarn("Longport API:    not configured")
	}
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TradeDataGo v1.0.0")
			fmt.Println("Market Data Retrieval and Reporting")
		},
	}
}

// faresctl is the operational CLI: run one-off crawls against live
// sources, fan a search out across every adapter, and probe source
// health, all without going through the queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/dispatch"
	"github.com/skyfare/skyfare/merge"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources"
)

func main() {
	app := &cli.App{
		Name:  "faresctl",
		Usage: "crawl fare sources and inspect their health",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit JSON instead of tables"},
			&cli.StringFlag{Name: "cabin", Value: "economy", Usage: "economy, premium_economy, business or first"},
			&cli.StringFlag{Name: "currency", Usage: "override the configured currency"},
			&cli.StringFlag{Name: "return", Usage: "return date (YYYY-MM-DD) for a round trip"},
		},
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "crawl one source",
				ArgsUsage: "<source> <ORIGIN> <DEST> <YYYY-MM-DD>",
				Action:    runCrawl,
			},
			{
				Name:      "crawl-all",
				Usage:     "crawl every source and merge the results",
				ArgsUsage: "<ORIGIN> <DEST> <YYYY-MM-DD>",
				Action:    runCrawlAll,
			},
			{
				Name:      "health",
				Usage:     "probe source health; exits 1 when any source is down",
				ArgsUsage: "[source ...]",
				Action:    runHealth,
			},
			{
				Name:   "sources",
				Usage:  "list registered sources",
				Action: runSources,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *crawler.Registry, *dispatch.Dispatcher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: "warn", Format: "text"})

	registry := crawler.NewRegistry()
	sources.RegisterAll(registry, cfg.CrawlerConfig)

	// One-off invocations skip rate limiting and circuit breaking.
	dispatcher := dispatch.New(registry, dispatch.Options{
		DefaultTimeout: cfg.CrawlerConfig.L3Timeout,
	})
	return cfg, registry, dispatcher, nil
}

func buildRequest(c *cli.Context, cfg *config.Config, origin, dest, date string) (core.SearchRequest, error) {
	departure, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return core.SearchRequest{}, fmt.Errorf("departure date: %w", err)
	}

	currency := c.String("currency")
	if currency == "" {
		currency = cfg.CrawlerConfig.DefaultCurrency
	}

	req := core.SearchRequest{
		Origin:        strings.ToUpper(origin),
		Destination:   strings.ToUpper(dest),
		DepartureDate: departure,
		TripType:      core.OneWay,
		CabinClass:    core.ParseCabinClass(c.String("cabin")),
		Passengers:    core.DefaultPassengers(),
		Currency:      currency,
	}
	if ret := c.String("return"); ret != "" {
		returnDate, err := time.Parse(time.DateOnly, ret)
		if err != nil {
			return core.SearchRequest{}, fmt.Errorf("return date: %w", err)
		}
		req.ReturnDate = &returnDate
		req.TripType = core.RoundTrip
	}
	return req, req.Validate()
}

func runCrawl(c *cli.Context) error {
	if c.NArg() != 4 {
		return cli.Exit("usage: faresctl crawl <source> <ORIGIN> <DEST> <YYYY-MM-DD>", 2)
	}
	source := c.Args().Get(0)

	cfg, registry, dispatcher, err := setup()
	if err != nil {
		return err
	}
	if !registry.Has(source) {
		return cli.Exit(fmt.Sprintf("unknown source %q; try 'faresctl sources'", source), 2)
	}

	req, err := buildRequest(c, cfg, c.Args().Get(1), c.Args().Get(2), c.Args().Get(3))
	if err != nil {
		return err
	}

	result := dispatcher.DispatchSingle(context.Background(), source, req)
	if !result.Success {
		return cli.Exit(fmt.Sprintf("%s failed: %s", source, result.Error), 1)
	}

	if c.Bool("json") {
		return emitJSON(result)
	}
	fmt.Printf("%s: %d flights in %dms\n", source, len(result.Flights), result.DurationMS)
	renderFlights(result.Flights)
	return nil
}

func runCrawlAll(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.Exit("usage: faresctl crawl-all <ORIGIN> <DEST> <YYYY-MM-DD>", 2)
	}

	cfg, registry, dispatcher, err := setup()
	if err != nil {
		return err
	}
	req, err := buildRequest(c, cfg, c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
	if err != nil {
		return err
	}

	results := dispatcher.DispatchParallel(context.Background(), registry.Names(), req)
	merged := merge.Merge(results)

	if c.Bool("json") {
		return emitJSON(map[string]any{"results": results, "merged": merged})
	}

	for _, result := range results {
		status := fmt.Sprintf("%d flights", len(result.Flights))
		if !result.Success {
			status = "failed: " + result.Error
		}
		fmt.Printf("%-28s %s (%dms)\n", result.Source, status, result.DurationMS)
	}
	fmt.Printf("\n%d merged flights\n", len(merged))
	renderFlights(merged)
	return nil
}

func runHealth(c *cli.Context) error {
	_, registry, _, err := setup()
	if err != nil {
		return err
	}

	names := c.Args().Slice()
	if len(names) == 0 {
		names = registry.Names()
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status"})

	failed := false
	for _, name := range names {
		status := "up"
		src, err := registry.Build(name)
		if err != nil {
			status = "error: " + err.Error()
			failed = true
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if !src.HealthCheck(ctx) {
				status = "down"
				failed = true
			}
			cancel()
			src.Close()
		}
		t.AppendRow(table.Row{name, status})
	}

	if c.Bool("json") {
		// Tables are for humans; health --json keeps only the verdict.
		fmt.Printf("{\"healthy\": %t}\n", !failed)
	} else {
		t.Render()
	}
	if failed {
		return cli.Exit("one or more sources are down", 1)
	}
	return nil
}

func runSources(c *cli.Context) error {
	names := sources.Names()
	sort.Strings(names)
	if c.Bool("json") {
		return emitJSON(names)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func renderFlights(flights []core.NormalizedFlight) {
	if len(flights) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Flight", "Route", "Departure", "Duration", "Stops", "Cabin", "Price", "Source"})

	printer := message.NewPrinter(language.English)
	for _, f := range flights {
		price := "-"
		if amount, ok := f.LowestPrice(); ok {
			currency := ""
			if len(f.Prices) > 0 {
				currency = f.Prices[0].Currency
			}
			price = printer.Sprintf("%.2f %s", amount, currency)
		}
		duration := fmt.Sprintf("%dh%02dm", f.DurationMinutes/60, f.DurationMinutes%60)
		t.AppendRow(table.Row{
			f.FlightNumber,
			f.Origin + "-" + f.Destination,
			f.DepartureTime.Format("2006-01-02 15:04"),
			duration,
			f.Stops,
			f.CabinClass,
			price,
			f.Source,
		})
	}
	t.Render()
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

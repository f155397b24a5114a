// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and searcher setup hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probeworks/deepscout/config"
	"github.com/probeworks/deepscout/internal/logging"
	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/research"
	"github.com/probeworks/deepscout/search"
	"github.com/probeworks/deepscout/server"
	"github.com/probeworks/deepscout/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Verbose  bool
}

// Research runs a single researcher on the query and prints its finding.
func Research(ctx context.Context, query string, opts Options) error {
	provider, settings, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}
	searcher, err := createSearcher(settings)
	if err != nil {
		return err
	}

	fmt.Printf("Researching: %s\n\n", query)
	start := time.Now()

	finding, err := research.RunSingleAgent(ctx, provider, searcher, query, researchOptions(settings, opts))
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	printFinding(finding, opts.Verbose)
	fmt.Printf("\n(%s)\n", time.Since(start).Round(time.Second))
	return nil
}

// Supervise runs the full supervisor pipeline and prints the report.
func Supervise(ctx context.Context, query string, opts Options) error {
	provider, settings, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}
	searcher, err := createSearcher(settings)
	if err != nil {
		return err
	}

	fmt.Printf("Researching (supervised): %s\n\n", query)
	start := time.Now()

	report, err := research.RunSupervised(ctx, provider, searcher, query, researchOptions(settings, opts))
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if opts.Verbose {
		for _, finding := range report.Findings {
			printFinding(finding, false)
			fmt.Println()
		}
		fmt.Println("--- Report ---")
	}
	fmt.Println(report.DraftReport)
	fmt.Printf("\n(%d researchers, %s)\n", len(report.Findings), time.Since(start).Round(time.Second))
	return nil
}

// Serve runs the HTTP research server until interrupted.
func Serve(ctx context.Context, addr string, opts Options) error {
	provider, settings, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}
	searcher, err := createSearcher(settings)
	if err != nil {
		return err
	}

	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	log, err := logging.New(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := storage.OpenTaskStore(settings.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer store.Close()

	if addr == "" {
		addr = settings.Server.Addr
	}

	researchOpts := researchOptions(settings, opts)
	researchOpts.Observer = logging.NewObserver(log)

	srv := server.New(addr, provider, searcher, store, researchOpts, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func researchOptions(settings config.Settings, opts Options) research.Options {
	researchOpts := research.Options{
		WorkerCap:        settings.Research.WorkerCap,
		SupervisorCap:    settings.Research.SupervisorCap,
		MaxWorkers:       settings.Research.MaxWorkers,
		MaxSearchResults: settings.Research.MaxSearchResults,
	}
	if opts.Verbose {
		if log, err := logging.NewDevelopment(); err == nil {
			researchOpts.Observer = logging.NewObserver(log)
		}
	}
	return researchOpts
}

func createProvider(providerName string) (llm.Provider, config.Settings, error) {
	if providerName == "" {
		return nil, config.Settings{}, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return provider, settings, nil
}

func createSearcher(settings config.Settings) (search.Provider, error) {
	if settings.Search.TavilyAPIKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY environment variable not set")
	}
	return search.NewTavily(settings.Search.TavilyAPIKey, settings.Search.SearchDepth), nil
}

func printFinding(finding research.Finding, verbose bool) {
	fmt.Printf("=== %s ===\n", finding.Topic)
	if finding.Failed {
		fmt.Println("(research failed)")
		return
	}
	if finding.Truncated {
		fmt.Println("(cut short by iteration budget)")
	}
	fmt.Println(finding.Summary)
	if verbose && len(finding.RawNotes) > 0 {
		fmt.Printf("\n--- Raw notes (%d) ---\n", len(finding.RawNotes))
		for i, note := range finding.RawNotes {
			fmt.Printf("[%d] %s\n", i+1, note)
		}
	}
}

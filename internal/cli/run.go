package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/careledger/claimsort/internal/model"
	"github.com/careledger/claimsort/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	sourceURL    string
	destURL      string
	runTimeout   time.Duration
	llmProvider  string
	llmModel     string
	llmTimeout   time.Duration
	windowDays   int
	candidates   int
	noCache      bool
	rps          float64
	httpProxy    string
	httpsProxy   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the source inbox: extract, cluster, and file documents",
	Long: `Run executes one batch over the source location:
- Extract structured fields from each document via the language model
- Sort records by event date
- Match each record to an existing claim or create a new one
- Move each document into its claim folder with a category-prefixed name
- Append one row per document to the claim's Excel report

Documents that fail extraction stay in the source for the next run.

Example:
  claimsort run --source ./inbox --dest ./claims
  claimsort run --source ./inbox --dest ./claims --llm-provider ollama --llm-model llama3.1:8b
  claimsort run --source s3://mybucket/inbox --dest s3://mybucket/claims --window 21`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Location flags
	runCmd.Flags().StringVar(&sourceURL, "source", "./inbox", "source location (path, file://, s3://...)")
	runCmd.Flags().StringVar(&destURL, "dest", "./claims", "destination location for claim folders")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "total timeout for the batch run")

	// Matching flags
	runCmd.Flags().IntVar(&windowDays, "window", 14, "tolerance window in days for matching a document to a claim")
	runCmd.Flags().IntVar(&candidates, "candidates", 5, "known claim labels offered to the model as a naming bias")

	// LLM flags
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
	runCmd.Flags().DurationVar(&llmTimeout, "llm-timeout", time.Minute, "timeout per model call")
	runCmd.Flags().Float64Var(&rps, "rps", 1, "model calls per second")
	runCmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	runCmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Cache flags
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction-result cache")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Build configuration from flags
	cfg := model.DefaultConfig()
	cfg.Source.URL = sourceURL
	cfg.Destination.URL = destURL
	cfg.Match.WindowDays = windowDays
	cfg.Match.CandidateLabels = candidates
	cfg.Cache.Enabled = !noCache
	cfg.RateLimiting.RequestsPerSecond = rps
	cfg.Output.Verbose = verbose
	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	cfg.LLM.Timeout = int(llmTimeout.Seconds())
	cfg.LLM.HTTPProxy = httpProxy
	cfg.LLM.HTTPSProxy = httpsProxy

	// Get API key from environment
	switch llmProvider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimsort Batch Run\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Source:       %s\n", sourceURL)
	fmt.Fprintf(os.Stderr, "  Destination:  %s\n", destURL)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", llmProvider, llmModel)
	fmt.Fprintf(os.Stderr, "  Window:       %d days\n", windowDays)
	fmt.Fprintf(os.Stderr, "\n")

	// Create pipeline
	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}

	// Run the batch
	report, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	// Per-document results
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case model.OutcomeOrganized:
			marker := "→"
			if outcome.NewClaim {
				marker = "+"
			}
			fmt.Fprintf(os.Stderr, "✓ %s %s %s\n", outcome.SourceName, marker, outcome.ClaimLabel)
		case model.OutcomeSkipped:
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", outcome.SourceName, outcome.Error)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Run Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Run ID:          %s\n", report.RunID)
	fmt.Fprintf(os.Stderr, "  Documents:       %d\n", report.Documents)
	fmt.Fprintf(os.Stderr, "  Organized:       %d\n", report.Organized)
	fmt.Fprintf(os.Stderr, "  Skipped:         %d\n", report.Skipped)
	fmt.Fprintf(os.Stderr, "  Claims created:  %d\n", report.ClaimsCreated)
	fmt.Fprintf(os.Stderr, "  Claims matched:  %d\n", report.ClaimsMatched)
	fmt.Fprintf(os.Stderr, "  Duration:        %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

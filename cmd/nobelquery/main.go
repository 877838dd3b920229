// Command nobelquery is a single-purpose CLI for manually exercising the
// query engine end to end, grounded on the teacher's cmd/embedctl:
// flag parsing, config.Load, and a log.Fatal-on-setup-error shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"manifold/internal/nobel/audit"
	"manifold/internal/nobel/config"
	"manifold/internal/nobel/embed"
	"manifold/internal/nobel/engine"
	"manifold/internal/nobel/llmclient"
	"manifold/internal/nobel/metadata"
	"manifold/internal/nobel/metrics"
	"manifold/internal/nobel/taxonomy"
	"manifold/internal/nobel/vectorstore"
	"manifold/internal/observability"
)

func main() {
	log.SetFlags(0)
	var (
		query    = flag.String("query", "", "query text (required)")
		modelID  = flag.String("model", "", "override LLM model")
		topK     = flag.Int("top-k", 0, "override top_k")
		stdinArg    = flag.Bool("stdin", false, "read query text from stdin")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	text := *query
	if *stdinArg {
		b, err := readAllStdin()
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = strings.TrimSpace(b)
	}
	if text == "" {
		log.Fatal("no query provided; use -query or -stdin")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	observability.InitLogger("", cfg.LogLevel)

	laureates, err := metadata.Load(cfg.MetadataPath)
	if err != nil {
		log.Fatalf("load metadata: %v", err)
	}

	var embedder embed.Client
	if cfg.EmbedderURL == "" {
		embedder = embed.NewDeterministic(cfg.EmbedderDim, 0)
	} else {
		embedder = embed.NewHTTPClient(cfg.EmbedderURL, cfg.EmbedderAPIKey, cfg.EmbedderModel, cfg.EmbedderDim, http.DefaultClient)
	}

	tax, err := taxonomy.Load(context.Background(), cfg.TaxonomyPath, embedder)
	if err != nil {
		log.Fatalf("load taxonomy: %v", err)
	}

	store, err := vectorstore.NewQdrant(cfg.VectorStoreURL, cfg.VectorCollection, cfg.EmbedderDim, cfg.VectorMetric)
	if err != nil {
		log.Fatalf("connect vector store: %v", err)
	}

	priceTable := llmclient.DefaultPriceTable
	if cfg.LLMPriceTable != "" {
		raw, err := os.ReadFile(cfg.LLMPriceTable)
		if err != nil {
			log.Fatalf("read price table: %v", err)
		}
		priceTable = map[string]llmclient.PriceEntry{}
		if err := json.Unmarshal(raw, &priceTable); err != nil {
			log.Fatalf("parse price table: %v", err)
		}
	}

	var llm llmclient.Provider
	if cfg.LLMProvider == "openai" {
		llm = llmclient.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, priceTable, http.DefaultClient)
	} else {
		llm = llmclient.NewAnthropicProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, 1024, priceTable, http.DefaultClient)
	}

	auditLogger := audit.New(audit.Options{Dir: cfg.AuditLogDir, MaxSizeBytes: cfg.AuditRotateBytes, Environment: cfg.Environment})
	defer auditLogger.Close()

	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("serving metrics on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	svc := engine.New(laureates, tax, embedder, store, llm, auditLogger,
		engine.WithQueryDeadline(cfg.QueryDeadline),
		engine.WithMetrics(recorder),
	)
	svc.LLMModel = cfg.LLMModel
	svc.LLMTemperature = cfg.LLMTemperature

	resp, err := svc.Query(context.Background(), engine.Request{
		Query:   text,
		ModelID: *modelID,
		TopK:    *topK,
		Source:  "cli",
	})
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("encode response: %v", err)
	}
}

func readAllStdin() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			if err.Error() == "EOF" {
				return sb.String(), nil
			}
			return sb.String(), err
		}
	}
}

// cmd/facecast/generate.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"facecast/internal/common/config"
	"facecast/internal/common/observability"
	"facecast/internal/common/platform"
	"facecast/internal/genai"
	"facecast/internal/models"
	archivebuild "facecast/internal/workers/export/archive-build"
	handoffdispatch "facecast/internal/workers/export/handoff-dispatch"
	expressionbatch "facecast/internal/workers/generation/expression-batch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	reference   string
	expressions []string
	all         bool
	concurrency int
	template    string
	outputDir   string
	filename    string
	noHandoff   bool
	metricsAddr string
}

func newGenerateCommand(a *app) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render expressions of a reference portrait and hand the archive to the gallery tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.reference, "reference", "r", "", "Reference portrait (PNG, JPEG, WebP or GIF)")
	cmd.Flags().StringSliceVarP(&opts.expressions, "expressions", "e", nil, "Expressions to render (default: the catalog defaults)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Render every expression in the catalog")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "Concurrent requests per batch (default: generation.concurrency)")
	cmd.Flags().StringVar(&opts.template, "template", "", "Prompt template containing "+config.PromptPlaceholder)
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory to save the archive in (default: handoff.download_dir)")
	cmd.Flags().StringVar(&opts.filename, "filename", "", "Archive filename (default: handoff.filename)")
	cmd.Flags().BoolVar(&opts.noHandoff, "no-handoff", false, "Save the archive without notifying the gallery tool")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics on this address while running")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func (a *app) generate(ctx context.Context, out io.Writer, opts *generateOptions) error {
	ref, err := loadReference(opts.reference)
	if err != nil {
		return fail("generate", err)
	}

	cat, err := a.catalog()
	if err != nil {
		return fail("generate", err)
	}
	labels := cat.Resolve(opts.expressions)
	if opts.all {
		labels = cat.Labels()
	} else if len(labels) == 0 {
		labels = cat.DefaultLabels()
	}

	template := opts.template
	if template == "" {
		template = cat.PromptTemplate
	}
	concurrency := opts.concurrency
	if concurrency == 0 {
		concurrency = a.cfg.Generation.Concurrency
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Address
	}
	obs := observability.New(a.cfg.App.Name)
	defer obs.Shutdown()
	if addr != "" {
		stop := a.serveMetrics(addr)
		defer stop()
	}

	client := genai.NewClient(genai.ConfigFrom(a.cfg), a.log)
	batch := expressionbatch.NewHandler(
		expressionbatch.LoadConfig(a.cfg),
		client,
		a.store,
		a.log,
		expressionbatch.WithObservability(obs),
		expressionbatch.WithProgress(func(label string, index int, ok bool) {
			mark := "✓"
			if !ok {
				mark = "✗"
			}
			fmt.Fprintf(out, "  %s %s\n", mark, label)
		}),
	)

	fmt.Fprintf(out, "Generating %d expressions (%d at a time)...\n", len(labels), concurrency)
	run, err := batch.Run(ctx, ref, models.NewWorkItems(labels...), concurrency, template)
	if err != nil && run == nil {
		return fail("generate", err)
	}

	succeeded, failed := run.Counts()
	fmt.Fprintf(out, "%d succeeded, %d failed in %s\n", succeeded, failed, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	for _, r := range run.Results {
		if reason := r.Err(); reason != nil {
			fmt.Fprintf(out, "  %s: %v\n", r.Label, reason)
		}
	}
	if err != nil {
		return fail("generate", err)
	}

	archive, err := archivebuild.NewHandler(archivebuild.LoadConfig(), a.log).Build(run.Results)
	if err != nil {
		return fail("archive", err)
	}

	hcfg := handoffdispatch.LoadConfig(a.cfg)
	if opts.outputDir != "" {
		hcfg.DownloadDir = opts.outputDir
	}
	filename := opts.filename
	if filename == "" {
		filename = hcfg.Filename
	}

	var launcher platform.Launcher = platform.NewOSLauncher()
	if opts.noHandoff {
		launcher = disabledLauncher{}
		hcfg.SettleDelay = 0
	}
	dispatcher := handoffdispatch.NewHandler(hcfg, handoffdispatch.NewDirSaver(hcfg.DownloadDir), launcher, a.log)

	receipt, err := dispatcher.Deliver(ctx, archive, filename)
	if err != nil {
		return fail("handoff", err)
	}

	fmt.Fprintf(out, "Saved %d images to %s\n", archive.Len(), receipt.Path)
	if opts.noHandoff {
		fmt.Fprintf(out, "Open it with: %s\n", dispatcher.ManualCommand(receipt.Path))
		return nil
	}
	fmt.Fprintln(out, receipt.Notification.Message)
	return nil
}

func loadReference(path string) (models.ReferenceArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ReferenceArtifact{}, fmt.Errorf("read reference: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return models.ReferenceArtifact{}, fmt.Errorf("reference %s is not an image (%s)", path, mimeType)
	}
	return models.ReferenceArtifact{MIMEType: mimeType, Data: data}, nil
}

func (a *app) serveMetrics(addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.Info("metrics server listening", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// disabledLauncher makes --no-handoff skip the URI opener.
type disabledLauncher struct{}

func (disabledLauncher) Open(context.Context, string) error {
	return errors.New("handoff disabled")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/farmplat/farmmap/internal/server"
	"github.com/farmplat/farmmap/internal/service"
)

// Options defines all CLI flags and env vars for the farmmap server.
// Flags: --host, --port, --data-dir, --web-dir, --overpass-url,
// --water-ttl-hours, --water-radius-km, --verbose
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host          string  `doc:"Host to bind to" default:"0.0.0.0"`
	Port          int     `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir       string  `doc:"Directory for farm data files" default:".data"`
	WebDir        string  `doc:"Path to web/ directory overriding embedded pages" default:""`
	OverpassURL   string  `doc:"Overpass API endpoint for water source lookups" default:"https://overpass-api.de/api/interpreter"`
	WaterTTLHours int     `doc:"Hours before cached water sources go stale" default:"24"`
	WaterRadiusKm float64 `doc:"Search radius in km around the farm centroid" default:"10"`
	Verbose       bool    `doc:"Enable debug logging" short:"v" default:"false"`
}

func newLogger(opts *Options) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newServer(opts *Options, logger *zap.Logger) *server.Server {
	srv, err := server.New(server.Config{
		Host:          opts.Host,
		Port:          fmt.Sprintf("%d", opts.Port),
		DataDir:       opts.DataDir,
		WebDir:        opts.WebDir,
		OverpassURL:   opts.OverpassURL,
		WaterTTL:      time.Duration(opts.WaterTTLHours) * time.Hour,
		WaterRadiusKm: opts.WaterRadiusKm,
		Logger:        logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(opts)
		srv := newServer(opts, logger)

		addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
		httpSrv := &http.Server{Addr: addr, Handler: srv}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("farmmap API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer, %s/editor\n", baseURL, baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(ctx); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
			if err := srv.Close(); err != nil {
				logger.Warn("close", zap.Error(err))
			}
			logger.Sync()
		})
	})

	cli.Root().Use = "farmmap"
	cli.Root().Short = "Farm geometry editor for boundaries, sections, and water sources"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := zap.NewNop()
			srv := newServer(opts, logger)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// fetch-water subcommand: refresh a farm's water sources from Overpass
	fetchCmd := &cobra.Command{
		Use:   "fetch-water <farm-id>",
		Short: "Fetch nearby water sources for a farm and print them",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts)
			srv := newServer(opts, logger)
			defer srv.Close()

			force, _ := cmd.Flags().GetBool("force")
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			m, refreshed, err := srv.FarmService().RefreshWaterSources(ctx, args[0], force)
			if err != nil {
				if errors.Is(err, service.ErrNoBoundary) {
					fmt.Fprintf(os.Stderr, "Farm %s has no boundary yet, draw one first\n", args[0])
				} else {
					fmt.Fprintf(os.Stderr, "Error fetching water sources: %v\n", err)
				}
				os.Exit(1)
			}

			if refreshed {
				fmt.Printf("Fetched %d water sources for farm %s\n", len(m.WaterSources), args[0])
			} else {
				fmt.Printf("Cache is fresh, %d water sources for farm %s (use --force to refetch)\n",
					len(m.WaterSources), args[0])
			}
			for _, ws := range m.WaterSources {
				name := ws.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("  %-30s %-10s %.5f, %.5f\n", name, ws.Type, ws.Lat, ws.Lon)
			}
		}),
	}
	fetchCmd.Flags().BoolP("force", "f", false, "Refetch even when the cache is fresh")
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}

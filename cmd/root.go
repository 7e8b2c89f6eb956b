// Package cmd implements the repoconnector CLI: get/put/exists
// subcommands wiring the default transporthttp/layout/maven2/fsprocessor/
// progressbar/ratelimit adapters into a Connector, exercising it exactly
// the way a resolver or build tool would.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"repoconnector/checksum"
	"repoconnector/connector"
	"repoconnector/download"
	"repoconnector/fsprocessor"
	"repoconnector/internal"
	"repoconnector/layout/maven2"
	"repoconnector/progressbar"
	"repoconnector/ratelimit"
	"repoconnector/spi"
	"repoconnector/transporthttp"
	"repoconnector/upload"
)

var (
	repoURL        string
	threads        int
	checksumPolicy string
	noResume       bool
	rateLimitFlag  string
	proxyURL       string
	quiet          bool
	logLevel       string
	config         *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "repoconnector",
	Short:   "Fetch and publish artifacts against a Maven-style repository",
	Version: "v1.0.0",
	Long: `repoconnector is the repository connector core exposed as a CLI:
concurrent, resumable artifact transfers with multi-algorithm checksum
validation, driven the same way a dependency resolver or build tool would
drive it through the Connector facade.

Examples:
  repoconnector get --repo https://repo.example.com org.example:widget:1.0 widget-1.0.jar
  repoconnector put --repo https://repo.example.com org.example:widget:1.0 ./widget-1.0.jar
  repoconnector exists --repo https://repo.example.com org.example:widget:1.0

Environment Variables:
  REPOCONNECTOR_THREADS         Default worker-pool size
  REPOCONNECTOR_RESUME          "true"/"false"
  REPOCONNECTOR_RESUME_THRESHOLD  Bytes
  REPOCONNECTOR_REQUEST_TIMEOUT_MS Milliseconds
  REPOCONNECTOR_PARALLEL_PUT    "true"/"false"
  REPOCONNECTOR_PROXY           Proxy URL
  REPOCONNECTOR_LOG_LEVEL       debug|info|warn|error`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config = internal.DefaultConfig()
		config.LoadFromEnv()

		if proxyURL == "" {
			proxyURL = os.Getenv("REPOCONNECTOR_PROXY")
		}
		config.ProxyURL = proxyURL
		config.QuietMode = quiet
		if logLevel != "" {
			config.LogLevel = logLevel
		}
		if noResume {
			config.Resume = false
		}
		if cmd.Flags().Changed("threads") {
			config.Threads = threads
		}

		if err := config.Validate(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		internal.InitLogger(config)
		internal.GetLogger().Info("repoconnector starting up")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoURL, "repo", "", "Repository base URL (required)")
	rootCmd.PersistentFlags().IntVarP(&threads, "threads", "t", 5, "Worker-pool size (env: REPOCONNECTOR_THREADS)")
	rootCmd.PersistentFlags().StringVar(&checksumPolicy, "checksum-policy", "strict", "Checksum policy: strict, warn, ignore, inspect-all")
	rootCmd.PersistentFlags().BoolVar(&noResume, "no-resume", false, "Disable partial-file resume")
	rootCmd.PersistentFlags().StringVarP(&rateLimitFlag, "rate-limit", "r", "", "Bandwidth limit (e.g. 5M)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL (env: REPOCONNECTOR_PROXY)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bar output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: REPOCONNECTOR_LOG_LEVEL)")

	rootCmd.AddCommand(getCmd, putCmd, existsCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// buildConnector wires the default adapters into a Connector using the
// flags/config resolved by PersistentPreRunE.
func buildConnector(ctx context.Context) (*connector.Connector, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("--repo is required")
	}

	rateBps, err := ratelimit.Parse(rateLimitFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --rate-limit: %w", err)
	}
	var limiter ratelimit.Limiter
	if rateBps > 0 {
		limiter = ratelimit.New(rateBps)
	}

	transport, err := transporthttp.New(transporthttp.Config{
		BaseURL:     repoURL,
		Timeout:     60 * time.Second,
		ProxyURL:    proxyURL,
		RateLimiter: limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	algorithms := checksum.StandardAlgorithms()
	policy := checksum.PolicyByName(checksumPolicy)
	layout := maven2.New()
	processor := fsprocessor.New()

	return connector.New(ctx, connector.Options{
		Config: connector.Config{
			Threads:     config.Threads,
			ParallelPut: config.ParallelPut,
		},
		TransporterProviders: []connector.TransporterProvider{
			func() (spi.Transporter, error) { return transport, nil },
		},
		LayoutProviders: []connector.LayoutProvider{
			func() (spi.Layout, error) { return layout, nil },
		},
		Download: download.Options{
			Processor:       processor,
			Fetcher:         transport,
			Policy:          policy,
			Algorithms:      algorithms,
			Checker:         transporterChecker{transporter: transport},
			Resume:          config.Resume,
			ResumeThreshold: config.ResumeThreshold,
			RequestTimeout:  config.RequestTimeout,
		},
		Upload: upload.Options{
			Algorithms: algorithms,
		},
	})
}

// withShutdownSignal returns a context cancelled on SIGINT/SIGTERM, and a
// cleanup func the caller defers.
func withShutdownSignal(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			internal.GetLogger().Info("received signal %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// transporterChecker adapts Transporter.Peek into a RemoteAccessChecker,
// probing the repository root rather than any one resource — a partial
// file's lock wait just needs to know the remote is still reachable at
// all before committing to it.
type transporterChecker struct {
	transporter spi.Transporter
}

func (c transporterChecker) Check(ctx context.Context) error {
	return c.transporter.Peek(ctx, "")
}

// parseCoordinate parses "groupId:artifactId:version[:extension[:classifier]]"
// into spi.Coordinates. Extension defaults to "jar".
func parseCoordinate(s string) (spi.Coordinates, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return spi.Coordinates{}, fmt.Errorf("invalid coordinate %q, want groupId:artifactId:version[:extension[:classifier]]", s)
	}
	c := spi.Coordinates{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2], Extension: "jar"}
	if len(parts) >= 4 && parts[3] != "" {
		c.Extension = parts[3]
	}
	if len(parts) >= 5 {
		c.Classifier = parts[4]
	}
	return c, nil
}

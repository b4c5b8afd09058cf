package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-overlay/internal/config"
	"github.com/a3tai/mcp-pdf-overlay/internal/mcp"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
	"github.com/a3tai/mcp-pdf-overlay/internal/render"
	"github.com/a3tai/mcp-pdf-overlay/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol, so logs go to stderr and only in debug
		if cfg.IsDebug() {
			log.SetOutput(os.Stderr)
		} else {
			log.SetOutput(io.Discard)
		}
		return
	}
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// newRenderPool starts PDFium when rendering is enabled. Each open session
// holds one instance, so the pool is sized to the session limit.
func newRenderPool(cfg *config.Config) (*render.Pool, error) {
	if !cfg.Render {
		return nil, nil
	}
	return render.NewPool(cfg.MaxSessions, cfg.RenderTimeout)
}

// serviceOptions maps the server configuration onto the PDF service
func serviceOptions(cfg *config.Config, pool *render.Pool) (pdf.ServiceOptions, error) {
	mode, err := session.ParseScaleMode(cfg.ScaleMode)
	if err != nil {
		return pdf.ServiceOptions{}, err
	}
	return pdf.ServiceOptions{
		MaxFileSize:     cfg.MaxFileSize,
		Directory:       cfg.PDFDirectory,
		Scale:           cfg.Scale,
		MinScale:        cfg.MinScale,
		MaxScale:        cfg.MaxScale,
		ScaleMode:       mode,
		LineTolerance:   cfg.LineTolerance,
		LineHeightRatio: cfg.LineHeightRatio,
		MaxSessions:     cfg.MaxSessions,
		RenderPool:      pool,
		RenderTimeout:   cfg.RenderTimeout,
		Logger:          log.Default(),
	}, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			return fmt.Errorf("server shutdown with error: %w", err)
		}

	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Println("Server stopped successfully")
	return nil
}

// runStdioMode handles stdio mode execution. The parent process controls
// our lifecycle and closes stdin when done.
func runStdioMode(ctx context.Context, server *mcp.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

func run(cfg *config.Config) error {
	pool, err := newRenderPool(cfg)
	if err != nil {
		// Extraction does not need PDFium
		log.Printf("Page rendering disabled: %v", err)
		pool = nil
	}
	if pool != nil {
		defer func() {
			if err := pool.Close(); err != nil {
				log.Printf("Failed to close render pool: %v", err)
			}
		}()
	}

	opts, err := serviceOptions(cfg, pool)
	if err != nil {
		return err
	}
	pdfService, err := pdf.NewService(opts)
	if err != nil {
		return fmt.Errorf("failed to create PDF service: %w", err)
	}
	defer pdfService.Close()

	server, err := mcp.NewServer(cfg, pdfService)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		return runServerMode(ctx, cancel, server)
	}
	return runStdioMode(ctx, server)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	if err := run(cfg); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Overlay\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}

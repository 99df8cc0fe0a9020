package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"blog_generator/backend"
	"blog_generator/config"
	"blog_generator/genclient"
	"blog_generator/generator"
	"blog_generator/logging"
	"blog_generator/server"
	"blog_generator/session"
	"blog_generator/tui"
	"blog_generator/workflow"
)

var verbose bool

func main() {
	configPath := flag.String("config", "config/config.json", "path to config file (.json, .yaml)")
	serve := flag.Bool("serve", false, "start the web UI")
	term := flag.Bool("tui", false, "start the terminal UI")
	runBackend := flag.Bool("backend", false, "start the reference generation API")
	mock := flag.Bool("mock", false, "use the deterministic mock model in the reference API")
	addr := flag.String("addr", "", "web UI listen address when --serve (overrides config.server_addr)")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	if !*serve && !*term && !*runBackend {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	logger := logging.New(logging.Options{FilePath: cfg.LogFile, Verbose: verbose, Quiet: *term})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	if *runBackend {
		h, err := buildBackend(cfg, *mock, logger)
		if err != nil {
			fail(err)
		}
		if !*term {
			color.New(color.FgMagenta, color.Bold).Printf("Generation API listening on %s\n", cfg.BackendAddr)
		}
		go func() { errc <- listen(ctx, cfg.BackendAddr, h, logger) }()
	}

	if !*serve && !*term {
		if err := <-errc; err != nil {
			fail(err)
		}
		return
	}

	ctrl, err := buildController(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}

	if *serve {
		srv, err := server.New(ctrl, logger)
		if err != nil {
			fail(err)
		}
		listenAddr := cfg.ServerAddr
		if *addr != "" {
			listenAddr = *addr
		}
		if !*term {
			color.New(color.FgCyan, color.Bold).Printf("Blog Generator web UI on %s (api %s)\n", listenAddr, cfg.APIBaseURL)
		}
		go func() { errc <- listen(ctx, listenAddr, srv.Routes(), logger) }()
	}

	if *term {
		if _, err := tea.NewProgram(tui.New(ctx, ctrl, logger), tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			fail(err)
		}
		return
	}

	if err := <-errc; err != nil {
		fail(err)
	}
}

func buildController(ctx context.Context, cfg config.Config, logger *zap.Logger) (*workflow.Controller, error) {
	kv, err := buildKV(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gen, err := genclient.New(cfg.APIBaseURL,
		genclient.WithTimeout(cfg.RequestTimeout()),
		genclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	ctrl := workflow.New(session.NewStore(kv, logger), gen, workflow.WithLogger(logger))
	if err := ctrl.Load(ctx); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return ctrl, nil
}

func buildKV(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.KV, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		return session.NewMemoryKV(), nil
	case config.StoreRedis:
		rdb := session.DialRedis(ctx, cfg.Store.RedisURL, logger)
		return session.NewRedisKV(rdb, cfg.Store.KeyPrefix), nil
	default:
		return session.NewFileKV(cfg.Store.Dir)
	}
}

func buildBackend(cfg config.Config, mock bool, logger *zap.Logger) (http.Handler, error) {
	llm, err := buildLLM(cfg, mock, logger)
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, nil)
	if err != nil {
		return nil, err
	}
	srv, err := backend.New(agent, logger)
	if err != nil {
		return nil, err
	}
	return srv.Routes(), nil
}

func buildLLM(cfg config.Config, mock bool, logger *zap.Logger) (generator.LLMClient, error) {
	if mock || cfg.LLM == nil || cfg.LLM.APIKey == "" {
		if !mock {
			logger.Warn("no llm api key configured; reference API uses the mock model")
		}
		return generator.MockLLM{}, nil
	}
	settings := &generator.LLMSettings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		ImageModel: cfg.LLM.ImageModel,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
	}
	switch cfg.LLM.Provider {
	case "", "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// OpenAI-compatible endpoint; needs an explicit base_url.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

// listen serves h until ctx is cancelled.
func listen(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func fail(err error) {
	color.New(color.FgRed).Fprintln(os.Stderr, err)
	os.Exit(1)
}

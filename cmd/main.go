package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"supplychain-rag/internal/config"
	"supplychain-rag/internal/helper"
	"supplychain-rag/internal/llmservice"
	"supplychain-rag/internal/rag"
	"supplychain-rag/internal/server"
	"supplychain-rag/internal/tui"
)

const configFilePath = "./configs/config.yaml"

type options struct {
	configPath string
	filePath   string
	query      string
	serve      bool
	addr       string
	asJSON     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", configFilePath, "Path to the YAML config file")
	flag.StringVar(&opts.filePath, "file", "", "Path to the supplier/tariff document")
	flag.StringVar(&opts.query, "query", "", "Question to answer from the document (requires -file)")
	flag.BoolVar(&opts.serve, "serve", false, "Run the HTTP API instead of the terminal UI")
	flag.StringVar(&opts.addr, "addr", "", "HTTP listen address, overrides server.addr")
	flag.BoolVar(&opts.asJSON, "json", false, "Print the one-shot answer as JSON")
	flag.Parse()

	if err := run(opts); err != nil {
		// the TUI may have silenced or redirected the logger
		setupLogger(os.Stderr, "info")
		log.Fatal().Err(err).Msg("Exiting")
	}
}

func run(opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.query != "" && opts.filePath == "" {
		return errors.New("please provide a document with the -file flag together with -query")
	}

	interactive := !opts.serve && opts.query == ""
	closeLog, err := configureLogging(cfg.Log, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Debug().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Interface("rag", cfg.RAG).
		Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := newPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	switch {
	case opts.serve:
		listen := cfg.Server.Addr
		if opts.addr != "" {
			listen = opts.addr
		}
		if err := server.New(pipeline, cfg.Server).Run(ctx, listen); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case opts.query != "":
		return answerOnce(ctx, pipeline, opts.filePath, opts.query, opts.asJSON)
	default:
		p := tea.NewProgram(tui.New(ctx, pipeline, opts.filePath), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal ui: %w", err)
		}
		return nil
	}
}

func newPipeline(ctx context.Context, cfg *config.Config) (*rag.RAG, error) {
	model, err := llmservice.NewModel(ctx, &cfg.LLM)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	responder := llmservice.NewResponder(model, cfg.LLM.Model, timeout)
	return rag.NewRAG(responder, cfg.RAG)
}

func answerOnce(ctx context.Context, pipeline *rag.RAG, filePath, query string, asJSON bool) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	session, err := pipeline.Ingest(filepath.Base(filePath), data)
	if err != nil {
		return fmt.Errorf("processing document: %w", err)
	}
	response, err := pipeline.Query(ctx, session, query)
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}

	if asJSON {
		helper.PrettyPrint(os.Stdout, response)
		return nil
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, c := range response.Source {
		fmt.Printf("[chunk %d, score %d] %s\n\n", c.Index, c.Score, c.Content)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
	return nil
}

// configureLogging keeps the alt screen clean: the TUI only logs to a file.
func configureLogging(cfg config.LogConfig, interactive bool) (func(), error) {
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		setupLogger(f, cfg.Level)
		return func() { _ = f.Close() }, nil
	}
	if interactive {
		log.Logger = zerolog.Nop()
		return func() {}, nil
	}
	setupLogger(os.Stderr, cfg.Level)
	return func() {}, nil
}

func setupLogger(out io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

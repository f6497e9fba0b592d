package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatlog/cmd/chatlog/stack"
	"github.com/papercomputeco/chatlog/pkg/logger"
	"github.com/papercomputeco/chatlog/proxy"
)

const serveLongDesc string = `Run the chat relay server.

Relays POST /api/chat turns to the AI endpoint, buffers each turn in
Redis (or memory when REDIS_URL is unset), and writes buffered turns to
Airtable or SQLite every 3 turns or when a request asks to flush.

Examples:
  chatlog serve
  chatlog serve --listen :9000 --config chatlog.toml`

const serveShortDesc string = "Run the chat relay server"

type serveCommander struct {
	flags      stack.Flags
	listenAddr string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmder.flags.Register(cmd)
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides LISTEN_ADDR)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if c.listenAddr != "" {
		cfg.ListenAddr = c.listenAddr
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Warn("configuration is incomplete", zap.Error(err))
	}

	s, err := stack.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	p := proxy.New(proxy.Config{
		ListenAddr:         cfg.ListenAddr,
		DefaultAssistantID: cfg.DefaultAssistantID,
		StreamTimeout:      cfg.RequestTimeout.Duration * 4,
	}, s.Orchestrator, log)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		if err := p.Shutdown(); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	return p.Run()
}

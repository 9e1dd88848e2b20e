package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-qa-rag/internal/helper"
	"pdf-qa-rag/internal/server"
	"pdf-qa-rag/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := helper.CreateFolder(cfg.Server.UploadDir); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions := session.NewManager(cfg.Session.TTL, a.metrics)
		defer sessions.Close()
		go sessions.Run(ctx, cfg.Session.SweepInterval)

		router := server.NewRouter(&server.Deps{
			Config:   &cfg.Server,
			Sessions: sessions,
			Ingester: a.pipeline,
			Answerer: a.rag,
			Metrics:  a.metrics,
		})

		log.Info().Str("vector_store", cfg.VectorStore.Backend).Str("vision", cfg.VisionLLM.Provider).Str("answer", cfg.AnswerLLM.Provider).Msg("Loaded config")
		return server.New(cfg.Server.Address, router).Run(ctx)
	},
}

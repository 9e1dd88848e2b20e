package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-qa-rag/internal/helper"
	"pdf-qa-rag/internal/vectorstore"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process a document and optionally export its vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		exportPath, _ := cmd.Flags().GetString("export")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		// exported stores are always chromem files
		a, err := newApp(ctx, cfg, vectorstore.ChromemBackend{})
		if err != nil {
			return err
		}
		defer a.Close()

		if dryRun {
			res, err := a.pipeline.Process(ctx, filePath)
			if err != nil {
				return err
			}
			log.Info().Int("documents", len(res.Documents)).Msg("Merged documents")
			helper.PrettyPrint(os.Stdout, res)
			return nil
		}

		store, res, err := a.pipeline.Ingest(ctx, filePath)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Int("pages", res.Pages).Int("chunks", store.Count()).Int("image_failures", len(res.Report.Failures)).Msg("Indexed document")

		if exportPath == "" {
			return nil
		}
		chromemStore, ok := store.(*vectorstore.ChromemStore)
		if !ok {
			return fmt.Errorf("store of type %T cannot be exported", store)
		}
		if err := chromemStore.Export(exportPath, cfg.RAG.EncryptionKey); err != nil {
			return err
		}
		log.Info().Str("file", exportPath).Msg("Exported vector store")
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("file", "", "Path to the document file")
	ingestCmd.Flags().Bool("dry-run", false, "Print merged documents, do not embed")
	ingestCmd.Flags().String("export", "", "Write the vector store to this file")
	_ = ingestCmd.MarkFlagRequired("file")
}

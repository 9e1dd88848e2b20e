package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-qa-rag/internal/vectorstore"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from an exported vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		storePath, _ := cmd.Flags().GetString("store")
		query, _ := cmd.Flags().GetString("query")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, vectorstore.ChromemBackend{})
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := vectorstore.ImportChromemStore(storePath, cfg.RAG.EncryptionKey)
		if err != nil {
			return err
		}

		response, err := a.rag.Query(ctx, store, query)
		if err != nil {
			return err
		}

		log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", query)

		log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		for _, s := range response.Sources {
			fmt.Printf("page %s, chunk %d (%.3f)\n", s.Page, s.ChunkID, s.Similarity)
		}
		fmt.Println()

		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", response.Content)
		return nil
	},
}

func init() {
	askCmd.Flags().String("store", "", "Exported vector store file")
	askCmd.Flags().String("query", "", "Question to answer")
	_ = askCmd.MarkFlagRequired("store")
	_ = askCmd.MarkFlagRequired("query")
}

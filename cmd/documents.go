package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"genai-auto/internal/chunker"
	"genai-auto/internal/helper"
	"genai-auto/internal/models"
	"genai-auto/internal/parser"
	"genai-auto/internal/rag"
)

func (c *cli) ingestCMD() *cobra.Command {
	var (
		docType      string
		strategy     string
		chunkSize    int
		chunkOverlap int
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, chunk and index documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := models.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			st, err := chunker.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			if dryRun {
				for _, path := range args {
					if err := c.previewChunks(path, st, chunkSize, chunkOverlap); err != nil {
						return err
					}
				}
				return nil
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				res, err := a.rag.IngestDocument(ctx, rag.IngestRequest{
					Content:      content,
					Filename:     filepath.Base(path),
					DocumentType: dt,
					Strategy:     st,
					ChunkSize:    chunkSize,
					ChunkOverlap: chunkOverlap,
					Metadata:     map[string]any{"path": path},
				})
				if errors.Is(err, parser.ErrEmptyDocument) {
					log.Warn().Str("file", path).Msg("Skipping empty document")
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", path, err)
				}
				helper.PrettyPrint(res)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", string(models.DocumentTypeManual), "document type: manual, spec, guide, faq, troubleshoot")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "auto", "chunking strategy: auto, recursive, semantic, markdown, fixed")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (0 uses the config)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "chunk overlap in characters, used with --chunk-size")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the chunks without embedding or storing them")
	return cmd
}

// previewChunks prints what ingest would store for path.
func (c *cli) previewChunks(path string, st chunker.Strategy, size, overlap int) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	text, err := parser.ExtractText(content, name, "")
	if err != nil {
		return err
	}
	opts := chunker.Options{ChunkSize: c.cfg.RAG.ChunkSize, ChunkOverlap: c.cfg.RAG.ChunkOverlap}
	if size > 0 {
		opts = chunker.Options{ChunkSize: size, ChunkOverlap: overlap}
	}
	if st == chunker.StrategyAuto {
		st = chunker.Strategy(c.cfg.RAG.DefaultStrategy)
	}
	chunks, err := chunker.New(opts).Chunk(text, map[string]any{"filename": name}, st)
	if err != nil {
		return err
	}
	log.Info().Str("file", name).Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
	return nil
}

func (c *cli) searchFlags(cmd *cobra.Command, opts *models.SearchOptions, docType *string) {
	cmd.Flags().IntVarP(&opts.TopK, "top-k", "k", 0, "number of results (0 uses the config)")
	cmd.Flags().StringVarP(docType, "type", "t", "", "only search this document type")
}

func (c *cli) queryCMD() *cobra.Command {
	var (
		opts     models.SearchOptions
		docType  string
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docType != "" {
				opts.DocumentType = models.DocumentType(docType)
			}
			if cmd.Flags().Changed("min-score") {
				opts.MinScore = models.Floor(minScore)
			}
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				results, err := a.rag.Query(ctx, strings.Join(args, " "), opts)
				if err != nil {
					return err
				}
				helper.PrettyPrint(results)
				return nil
			})
		},
	}
	c.searchFlags(cmd, &opts, &docType)
	cmd.Flags().StringVar(&opts.Source, "source", "", "only search chunks from this source")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "score floor, unset uses the config, -1 keeps every match")
	return cmd
}

func (c *cli) contextCMD() *cobra.Command {
	var (
		opts      models.SearchOptions
		docType   string
		maxTokens int
	)
	cmd := &cobra.Command{
		Use:   "context <text>",
		Short: "Print the prompt context assembled for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				text, err := a.rag.GetContext(ctx, strings.Join(args, " "), opts.TopK, maxTokens, models.DocumentType(docType))
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	c.searchFlags(cmd, &opts, &docType)
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "context budget in tokens (0 uses the config)")
	return cmd
}

func (c *cli) askCMD() *cobra.Command {
	var (
		topK   int
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
				fmt.Printf("%s\n\n", query)

				if !stream {
					ans, err := a.rag.Answer(ctx, query, topK)
					if err != nil {
						return err
					}
					printSources(ans.Sources)
					log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
					fmt.Printf("%s\n\n", ans.Text)
					return nil
				}

				results, err := a.rag.Query(ctx, query, models.SearchOptions{TopK: topK})
				if err != nil {
					return err
				}
				printSources(results)
				log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
				_, err = a.rag.GenerateStream(ctx, query, results, func(chunk string) error {
					_, err := fmt.Print(chunk)
					return err
				})
				fmt.Print("\n\n")
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to ground on (0 uses the config)")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the answer as it is generated")
	return cmd
}

func printSources(results []models.SearchResult) {
	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	if len(results) == 0 {
		fmt.Printf("%s\n\n", models.NoContextFound)
		return
	}
	for _, r := range results {
		fmt.Printf("- %s (%s) %.2f\n", r.Source, r.DocumentType, r.Score)
	}
	fmt.Println()
}

func (c *cli) deleteCMD() *cobra.Command {
	var source, documentID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the chunks of a source or of one ingested document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (source == "") == (documentID == "") {
				return errors.New("pass exactly one of --source or --id")
			}
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				var (
					n   int
					err error
				)
				if source != "" {
					n, err = a.rag.DeleteDocument(ctx, source)
				} else {
					n, err = a.rag.DeleteDocumentByID(ctx, documentID)
				}
				if err != nil {
					return err
				}
				log.Info().Str("source", source).Str("document_id", documentID).Int("deleted", n).Msg("Deleted chunks")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source file name")
	cmd.Flags().StringVar(&documentID, "id", "", "document id returned by ingest")
	return cmd
}

func (c *cli) sourcesCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				sources, err := a.rag.ListDocuments(ctx)
				if err != nil {
					return err
				}
				helper.PrettyPrint(sources)
				return nil
			})
		},
	}
}

func (c *cli) statsCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				stats, err := a.rag.GetStats(ctx)
				if err != nil {
					return err
				}
				helper.PrettyPrint(stats)
				return nil
			})
		},
	}
}

func (c *cli) exportCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the chromem collection to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				if a.chromem == nil {
					return errNotChromem
				}
				path := a.chromem.ExportPath()
				if len(args) == 1 {
					path = args[0]
				}
				if err := a.chromem.Export(ctx, path); err != nil {
					return err
				}
				log.Info().Str("file", path).Int("chunks", a.chromem.Count()).Msg("Exported collection")
				return nil
			})
		},
	}
}

func (c *cli) importCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Load the chromem collection from an exported file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
				if a.chromem == nil {
					return errNotChromem
				}
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				return a.chromem.Import(ctx, path)
			})
		},
	}
}

func (c *cli) withApp(ctx context.Context, withLLM bool, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, c.cfg, withLLM)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

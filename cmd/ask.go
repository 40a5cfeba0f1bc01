package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/irdesk/ir-assist/internal/model"
	"github.com/irdesk/ir-assist/internal/rag"
)

var (
	askCompany     string
	askSession     string
	askFile        string
	askConcurrency int
	askJSON        bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer an investor question for a company",
	Long:  "Answers a single question from the command line, or a batch of questions from a file with --file (one question per line).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if askFile != "" {
			return runBatch(ctx, env)
		}

		if len(args) == 0 {
			return eris.New("a question argument or --file is required")
		}

		answer, err := env.Pipeline.Ask(ctx, rag.Request{
			SessionID: askSession,
			Company:   askCompany,
			Query:     args[0],
			History:   sessionHistory(ctx, env.Store, askSession, cfg.RAG.HistoryTurns),
		})
		if err != nil {
			return err
		}
		return printAnswer(answer)
	},
}

// runBatch answers every question in the file concurrently. Failures
// are logged per question and do not abort the batch.
func runBatch(ctx context.Context, env *askEnv) error {
	f, err := os.Open(askFile)
	if err != nil {
		return eris.Wrapf(err, "open %s", askFile)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" || strings.HasPrefix(q, "#") {
			continue
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "read %s", askFile)
	}
	if len(questions) == 0 {
		return eris.Errorf("no questions in %s", askFile)
	}

	zap.L().Info("batch ask starting",
		zap.Int("questions", len(questions)),
		zap.Int("concurrency", askConcurrency),
	)

	var mu sync.Mutex
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(askConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			answer, err := env.Pipeline.Ask(gctx, rag.Request{
				Company: askCompany,
				Query:   q,
			})
			if err != nil {
				zap.L().Error("batch question failed", zap.Int("index", i), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Printf("Q%d: %s\n", i+1, q)
			if err := printAnswer(answer); err != nil {
				return err
			}
			fmt.Println()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("batch ask complete",
		zap.Int("answered", len(questions)-failed),
		zap.Int("failed", failed),
	)
	return nil
}

func printAnswer(answer *model.Answer) error {
	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Println(answer.Text)
	fmt.Printf("\n信頼度: %.2f（検索結果 %d件）\n", answer.Confidence, answer.SearchResultsCount)
	for _, src := range answer.Sources {
		fmt.Printf("  - %s (%s)\n", src.Title, src.Source)
	}
	return nil
}

func init() {
	askCmd.Flags().StringVar(&askCompany, "company", "", "company id, ticker, or name (required)")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id for conversation continuity")
	askCmd.Flags().StringVar(&askFile, "file", "", "file with one question per line")
	askCmd.Flags().IntVar(&askConcurrency, "concurrency", 3, "concurrent questions in batch mode")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print answers as JSON")
	askCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(askCmd)
}

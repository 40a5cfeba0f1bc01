package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/irdesk/ir-assist/internal/model"
	"github.com/irdesk/ir-assist/internal/rag"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question-answering API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/companies", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Companies.All())
		})

		r.Post("/api/ask", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				SessionID string                      `json:"session_id"`
				Company   string                      `json:"company"`
				Question  string                      `json:"question"`
				History   []model.ConversationMessage `json:"history"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.SessionID == "" {
				body.SessionID = uuid.New().String()
			}

			// Caller-supplied history wins; otherwise replay the stored
			// session.
			hist := body.History
			if len(hist) == 0 {
				hist = sessionHistory(req.Context(), env.Store, body.SessionID, cfg.RAG.HistoryTurns)
			}

			answer, err := env.Pipeline.Ask(req.Context(), rag.Request{
				SessionID: body.SessionID,
				Company:   body.Company,
				Query:     body.Question,
				History:   hist,
			})
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, rag.ErrEmptyQuery) || errors.Is(err, rag.ErrUnknownCompany) {
					status = http.StatusBadRequest
				}
				writeJSON(w, status, map[string]string{"error": err.Error()})
				return
			}

			writeJSON(w, http.StatusOK, struct {
				SessionID string `json:"session_id"`
				Answer    any    `json:"result"`
			}{SessionID: body.SessionID, Answer: answer})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

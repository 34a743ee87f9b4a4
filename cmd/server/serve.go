package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/lizzycam/internal/display"
	"github.com/Brownie44l1/lizzycam/internal/handlers"
	"github.com/Brownie44l1/lizzycam/internal/pipeline"
	"github.com/Brownie44l1/lizzycam/internal/supplier"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept camera frames over HTTP and publish the latest verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP port (env PORT, default 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	p, session, err := loadPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("Error closing model: %v", err)
		}
	}()

	mailbox := supplier.NewMailbox()
	board := display.NewBoard()
	runner := pipeline.NewRunner(mailbox, p, board)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Printf("Worker stopped: %v", err)
		}
	}()

	handler := handlers.NewHandler(p, mailbox, board, runner, session.Metadata.Classes)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Classes: %v", session.Metadata.Classes)
	log.Printf("Threshold: %.2f, decode: %s/%s, resampler: %s", cfg.Threshold, cfg.DecodeMode, cfg.FrameLayout, cfg.Resampler)
	log.Println("Endpoints:")
	log.Println("  GET  /health        - Health check")
	log.Println("  GET  /stats         - Mailbox and worker counters")
	log.Println("  GET  /result        - Latest verdict")
	log.Println("  GET  /ws            - Live verdict stream")
	log.Println("  POST /frames        - Submit a camera frame")
	log.Println("  POST /predict       - Raw array prediction")
	log.Println("  POST /predict/image - Predict from image upload")

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}

	mailbox.Close()
	wg.Wait()

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// Package main provides the notedrop CLI: the web server plus the
// operational commands for the search index and demo data.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/cache"
	"notedrop/internal/config"
	"notedrop/internal/extract"
	"notedrop/internal/moderation"
	"notedrop/internal/search"
	"notedrop/internal/storage"
	"notedrop/internal/tasks"
	"notedrop/internal/upload"
	"notedrop/internal/web"
)

var rootCmd = &cobra.Command{
	Use:   "notedrop",
	Short: "Educational note sharing platform",
	Long:  "notedrop serves uploaded study documents with moderation, full-text search and caching.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the database",
	RunE:  runReindex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and index statistics",
	RunE:  runStatus,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create baseline taxonomy and demo accounts",
	RunE:  runSeed,
}

var recreateIndex bool

func init() {
	reindexCmd.Flags().BoolVar(&recreateIndex, "recreate", false, "drop and recreate the index before rebuilding")
	rootCmd.AddCommand(serveCmd, reindexCmd, statusCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// components is the startup wiring shared by the commands.
type components struct {
	cfg       *config.Config
	db        *storage.DB
	blobs     blob.Store
	index     *search.Index
	projector *search.Projector
	logger    *slog.Logger
}

func setup() (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	blobs, err := blob.FromConfig(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	idx, err := search.Open(cfg.IndexPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}

	var extractor extract.Extractor
	if cfg.TikaURL != "" {
		tika := extract.NewTikaClient(cfg.TikaURL, cfg.ExtractTimeout)
		if err := tika.Health(context.Background()); err != nil {
			logger.Warn("tika not available, indexing metadata only", "error", err)
		} else {
			extractor = tika
		}
	}

	projector := search.NewProjector(blobs, extractor, cfg.ExtractTimeout, logger)

	return &components{
		cfg:       cfg,
		db:        db,
		blobs:     blobs,
		index:     idx,
		projector: projector,
		logger:    logger,
	}, nil
}

func (c *components) close() {
	c.index.Close()
	c.db.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	searchCache := cache.New(c.cfg.CacheTTL)
	dispatcher := tasks.New(c.db, c.index, c.projector, c.cfg.Workers, c.cfg.QueueSize, c.logger)
	pipeline := upload.NewPipeline(c.db, c.blobs, c.logger)
	workflow := moderation.NewWorkflow(c.db, c.blobs, dispatcher, searchCache, c.logger)
	authenticator := auth.NewTokenAuthenticator(c.db)

	server := web.NewServer(c.db, c.blobs, c.index, searchCache, pipeline, workflow, dispatcher, authenticator, c.logger)

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stop:
		c.logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}

	// Drain queued indexing work before closing the stores.
	dispatcher.Stop()
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	start := time.Now()
	ctx := context.Background()

	if _, err := c.index.EnsureSchema(recreateIndex); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	notes, err := c.db.ListApprovedNotes(ctx)
	if err != nil {
		return fmt.Errorf("list approved notes: %w", err)
	}
	fmt.Printf("Found %d approved notes\n", len(notes))

	docs := make([]*search.Document, len(notes))
	for i, note := range notes {
		docs[i] = c.projector.Project(ctx, note)
	}

	ok, failed := c.index.IndexBulk(docs)

	fmt.Println()
	fmt.Println("=== Reindex Complete ===")
	fmt.Printf("Indexed:  %d\n", ok)
	fmt.Printf("Failed:   %d\n", failed)
	fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	total, approved, err := c.db.CountNotes(context.Background())
	if err != nil {
		return fmt.Errorf("count notes: %w", err)
	}
	stats := c.index.GetStats()

	fmt.Println("=== notedrop status ===")
	fmt.Printf("Notes in database: %d (%d approved)\n", total, approved)
	fmt.Printf("Index exists:      %t\n", stats.Exists)
	fmt.Printf("Index documents:   %d\n", stats.DocCount)
	fmt.Printf("Index size:        %d bytes\n", stats.SizeBytes)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	ctx := context.Background()

	categories := map[string][]string{
		"O-LEVEL": {"Mathematics", "Physics", "Chemistry", "Biology", "English"},
		"A-LEVEL": {"Mathematics", "Physics", "Chemistry", "Economics"},
	}
	for category, subjects := range categories {
		catID, err := c.db.CreateCategory(ctx, category)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", category, err)
		}
		for _, subject := range subjects {
			if _, err := c.db.CreateSubject(ctx, catID, subject); err != nil {
				return fmt.Errorf("seed subject %s: %w", subject, err)
			}
		}
	}

	for _, docType := range []string{"Notes", "Past Paper", "Summary", "Exercises"} {
		if _, err := c.db.CreateDocType(ctx, docType); err != nil {
			return fmt.Errorf("seed doc type %s: %w", docType, err)
		}
	}

	accounts := []struct{ username, email, role, token string }{
		{"demo", "demo@example.com", "user", "demo-token"},
		{"admin", "admin@example.com", "admin", "admin-token"},
		{"dev", "dev@example.com", "developer", "dev-token"},
	}
	for _, a := range accounts {
		_, err := c.db.CreateAccount(ctx, a.username, a.email, a.role, a.token)
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("seed account %s: %w", a.username, err)
		}
	}

	fmt.Println("Seed complete")
	return nil
}

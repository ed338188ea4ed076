package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"qrcode_dashboard/graph"
	"qrcode_dashboard/internal/api"
	"qrcode_dashboard/internal/config"
	"qrcode_dashboard/internal/logger"
	"qrcode_dashboard/internal/messaging"
	"qrcode_dashboard/internal/qrcode"
	"qrcode_dashboard/internal/repository"
	"qrcode_dashboard/internal/service"
)

func runMigrations(db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		log.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		_, err = db.Exec(context.Background(), string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	log.Info("All migrations completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting QR code dashboard")

	db, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Connected to database")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	log.Info("Connected to NATS")

	memberRepo := repository.NewMemberRepository(db, log)
	directory := repository.NewDirectoryCache(memberRepo, log)
	if err := directory.Reload(context.Background()); err != nil {
		log.Error("Failed to warm up directory cache", zap.Error(err))
	}

	qrClient := qrcode.NewClient(qrcode.Options{
		BaseURL: cfg.QRCode.APIURL,
		Timeout: cfg.QRCode.Timeout,
		UseGet:  cfg.QRCode.ReverseMethod == config.ReverseMethodGet,
	}, log)

	memberService := service.NewMemberService(memberRepo, directory, qrClient, natsClient, log)
	scanService := service.NewScanService(qrClient, memberService, service.ScanOptions{StrictIDs: cfg.QRCode.StrictIDs}, log)

	// Киоск получает сканы из NATS и публикует результаты обратно
	kioskCtx, stopKiosk := context.WithCancel(context.Background())
	kioskDone := make(chan struct{})
	kiosk := service.NewKioskFlow(natsClient.KioskCamera(), scanService, natsClient, log)
	go func() {
		defer close(kioskDone)
		if err := kiosk.Run(kioskCtx); err != nil {
			log.Error("Kiosk scan flow failed", zap.Error(err))
		}
	}()

	// Внедряем зависимости в резолверы
	resolver := &graph.Resolver{
		MemberService: memberService,
		ScanService:   scanService,
		Logger:        log,
	}

	schema, err := graph.NewSchema(resolver)
	if err != nil {
		log.Fatal("Failed to build GraphQL schema", zap.Error(err))
	}

	router := api.NewRouter(api.NewHandler(memberService, scanService, schema, log))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	log.Info("Starting server", zap.String("address", addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	stopKiosk()
	<-kioskDone

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

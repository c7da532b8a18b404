package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markethub/internal/config"
	"github.com/markethub/internal/fileserver"
	"github.com/markethub/internal/handler"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/push"
	"github.com/markethub/internal/repository"
	"github.com/markethub/internal/startup"
	"github.com/markethub/internal/storage"
	"github.com/markethub/internal/storage/memory"
	"github.com/markethub/internal/ws"
	"github.com/markethub/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var store storage.SessionStore
	if *dev {
		store = memory.New()
		logger.Info("sessions: in-memory store (dev)")
	} else {
		store = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
	}
	defer store.Close()

	// VAPID-ключи: в -dev генерируются и сохраняются в config/vapid.json,
	// в production берутся только из окружения.
	if *dev && cfg.PushVAPIDPublicKey == "" {
		keys, err := push.EnsureVAPIDKeys("config/vapid.json")
		if err != nil {
			logger.Errorf("vapid keys: %v", err)
		} else {
			cfg.PushVAPIDPublicKey = keys.PublicKey
			cfg.PushVAPIDPrivateKey = keys.PrivateKey
		}
	}
	pusher := push.NewSender(store, cfg.PushVAPIDPublicKey, cfg.PushVAPIDPrivateKey, cfg.PushContactEmail)
	if pusher.Enabled() {
		logger.Info("web push enabled")
	}

	userRepo := repository.NewUserRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	companyRepo := repository.NewCompanyRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	serviceRepo := repository.NewServiceRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(cfg.MaxWSConnections, cfg.WSSendBufferSize)
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	files := fileserver.New(cfg.UploadDir, cfg.MaxUploadSize)

	sessionH := handler.NewSessionHandler(userRepo, store, cfg.SessionTTL, *dev)
	userH := handler.NewUserHandler(userRepo)
	msgH := handler.NewMessageHandler(msgRepo, userRepo, hub, pusher)
	convH := handler.NewConversationHandler(convRepo)
	catalogH := handler.NewCatalogHandler(categoryRepo, companyRepo, productRepo, serviceRepo, bookingRepo, orderRepo)
	reportH := handler.NewReportHandler(reportRepo)
	fileH := handler.NewFileHandler(files)
	pushH := handler.NewPushHandler(pusher, cfg.PushVAPIDPublicKey)
	wsH := handler.NewWSHandler(hub, store, cfg.CORSAllowedOrigins)
	configH := handler.NewConfigHandler(cfg.PollIntervalSeconds, cfg.PushVAPIDPublicKey)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/poll", configH.Get)
	r.Get("/api/push/public-key", pushH.PublicKey)
	r.Get("/api/files/{folder}/{filename}", fileH.Serve)

	r.Post("/api/auth/login", sessionH.Login)
	r.Post("/api/auth/logout", sessionH.Logout)

	// Каталог читается без сессии (витрина).
	r.Get("/api/categories", catalogH.ListCategories)
	r.Get("/api/categories/{id}", catalogH.GetCategory)
	r.Get("/api/companies", catalogH.ListCompanies)
	r.Get("/api/companies/{id}", catalogH.GetCompany)
	r.Get("/api/products", catalogH.ListProducts)
	r.Get("/api/products/{id}", catalogH.GetProduct)
	r.Get("/api/services", catalogH.ListServices)
	r.Get("/api/services/{id}", catalogH.GetService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(store))
		r.Get("/api/users/me", userH.Me)
		r.Put("/api/users/me", userH.UpdateProfile)
		r.Get("/api/users", userH.List)
		r.Get("/api/users/{id}", userH.Get)

		r.Get("/api/conversations", convH.List)
		r.Get("/api/conversations/unread", convH.UnreadTotal)
		r.Get("/api/conversations/{peerId}/messages", msgH.GetThread)
		r.Delete("/api/conversations/{peerId}/messages/{messageId}", msgH.DeleteMessage)
		r.Post("/api/messages", msgH.CreateMessage)
		r.Patch("/api/messages/{messageId}/reactions", msgH.React)

		r.Post("/api/files/upload", fileH.Upload)

		r.Post("/api/categories", catalogH.CreateCategory)
		r.Put("/api/categories/{id}", catalogH.UpdateCategory)
		r.Delete("/api/categories/{id}", catalogH.DeleteCategory)
		r.Post("/api/companies", catalogH.CreateCompany)
		r.Put("/api/companies/{id}", catalogH.UpdateCompany)
		r.Delete("/api/companies/{id}", catalogH.DeleteCompany)
		r.Post("/api/products", catalogH.CreateProduct)
		r.Put("/api/products/{id}", catalogH.UpdateProduct)
		r.Delete("/api/products/{id}", catalogH.DeleteProduct)
		r.Post("/api/services", catalogH.CreateService)
		r.Put("/api/services/{id}", catalogH.UpdateService)
		r.Delete("/api/services/{id}", catalogH.DeleteService)

		r.Get("/api/bookings", catalogH.ListBookings)
		r.Get("/api/bookings/{id}", catalogH.GetBooking)
		r.Post("/api/bookings", catalogH.CreateBooking)
		r.Put("/api/bookings/{id}", catalogH.UpdateBooking)
		r.Delete("/api/bookings/{id}", catalogH.DeleteBooking)
		r.Get("/api/orders", catalogH.ListOrders)
		r.Get("/api/orders/{id}", catalogH.GetOrder)
		r.Post("/api/orders", catalogH.CreateOrder)
		r.Put("/api/orders/{id}", catalogH.UpdateOrder)
		r.Delete("/api/orders/{id}", catalogH.DeleteOrder)

		r.Get("/api/reports/summary", reportH.Summary)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.Connect)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// runMigrations выполняет встроенные миграции по порядку имён файлов.
func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "markethub"
		password = "markethub_secret"
		database = "markethub"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/giftman/internal/anthropic"
	"github.com/hitoshi/giftman/internal/assistant"
	"github.com/hitoshi/giftman/internal/auth"
	"github.com/hitoshi/giftman/internal/config"
	"github.com/hitoshi/giftman/internal/database"
	"github.com/hitoshi/giftman/internal/giftlist"
	"github.com/hitoshi/giftman/internal/handler"
	"github.com/hitoshi/giftman/internal/logger"
	"github.com/hitoshi/giftman/internal/metrics"
	"github.com/hitoshi/giftman/internal/middleware"
	"github.com/hitoshi/giftman/internal/person"
	"github.com/hitoshi/giftman/internal/product"
	"github.com/hitoshi/giftman/internal/realtime"
	"github.com/hitoshi/giftman/internal/repository"
	"github.com/hitoshi/giftman/internal/security"
	"github.com/hitoshi/giftman/internal/seed"
	"github.com/hitoshi/giftman/internal/specialdate"
	"github.com/hitoshi/giftman/internal/user"
	"github.com/hitoshi/giftman/internal/worker/cleanup"
	"github.com/hitoshi/giftman/internal/worker/linkcheck"
	"github.com/hitoshi/giftman/internal/worker/reminder"
)

// conversationTTL はチャット会話状態のインメモリ保持期間。
const conversationTTL = 30 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	case CommandCheck:
		return runCheck(cfg)
	default:
		return runServe(cfg)
	}
}

// nameLister は人物名とイベント名の取得をまとめてアシスタントへ渡すための合成。
type nameLister struct {
	people *person.Service
	dates  *specialdate.Service
}

func (n nameLister) ListPeopleNames(ctx context.Context, userID string) ([]string, error) {
	return n.people.ListPeopleNames(ctx, userID)
}

func (n nameLister) ListEventNames(ctx context.Context, userID string) ([]string, error) {
	return n.dates.ListEventNames(ctx, userID)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	personRepo := repository.NewPostgresPersonRepo(db)
	dateRepo := repository.NewPostgresSpecialDateRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	bookmarkRepo := repository.NewPostgresBookmarkRepo(db)
	likeRepo := repository.NewPostgresLikeRepo(db)
	giftListRepo := repository.NewPostgresGiftListRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	personService := person.NewService(personRepo, sanitizer)
	dateService := specialdate.NewService(dateRepo, personRepo)
	productService := product.NewService(productRepo, bookmarkRepo, likeRepo, sanitizer, ssrfGuard)
	giftListService := giftlist.NewService(giftListRepo, productRepo)

	// 退会時のユーザーデータ削除順序: 参照される側を後に消す
	userService := user.NewService(userRepo, sessionRepo,
		bookmarkRepo, likeRepo, giftListRepo, dateRepo, personRepo,
	)

	// 6. AIアシスタントの初期化
	llmClient, err := anthropic.NewClient(
		&http.Client{Timeout: 60 * time.Second},
		slog.Default(),
		anthropic.ClientConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			Temperature: cfg.AnthropicTemperature,
			MaxTokens:   cfg.AnthropicMaxTokens,
			CallsPerMin: cfg.AnthropicCallsPerMin,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create anthropic client: %w", err)
	}

	dispatcher := assistant.NewDispatcher(personService, dateService, productService)
	registry2 := assistant.NewConversationRegistry(conversationTTL)
	assistantService := assistant.NewService(
		llmClient, dispatcher, registry2,
		nameLister{people: personService, dates: dateService},
		collector, slog.Default(),
	)

	// 7. リアルタイム配信の初期化
	hub := realtime.NewHub()
	listener := realtime.NewListener(cfg.DatabaseURL, hub, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("realtime listener stopped", slog.String("error", err.Error()))
		}
	}()

	// 8. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAI)

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PersonService: personService,
		PersonParser:  assistantService,

		SpecialDateService: dateService,

		ProductService: productService,
		SearchEnhancer: assistantService,
		Debouncer:      product.NewDebouncer(cfg.SearchDebounce),
		Hub:            hub,

		GiftListService: giftListService,

		Recommender: assistantService,
		ChatService: assistantService,

		UserService: handler.NewUserServiceAdapter(userService),

		Gatherer: registry,
		Metrics:  collector,

		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// リマインドスケジューラ・リンク確認ジョブ・クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	dateRepo := repository.NewPostgresSpecialDateRepo(db)
	reminderRepo := repository.NewPostgresReminderRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジョブの初期化
	scheduler := reminder.NewScheduler(
		dateRepo, reminderRepo, collector, slog.Default(), cfg.ReminderMaxConcurrent,
	)

	checker := linkcheck.NewChecker(productRepo, ssrfGuard, collector, slog.Default(),
		linkcheck.CheckerConfig{
			Interval:        cfg.LinkCheckInterval,
			TTL:             cfg.LinkCheckTTL,
			Timeout:         cfg.LinkCheckTimeout,
			MaxResponseSize: cfg.LinkCheckMaxSize,
			MaxPerCycle:     cfg.LinkCheckMaxPerCycle,
		},
	)

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, reminderRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.ReminderRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("reminder_interval", cfg.ReminderInterval),
		slog.Duration("link_check_interval", cfg.LinkCheckInterval),
	)

	// リンク確認ジョブをバックグラウンドで起動
	go checker.Start(ctx)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// リマインドスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ReminderInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はサンプル商品データを投入する。
// 商品が既に存在する場合は何もしない（冪等）。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	productRepo := repository.NewPostgresProductRepo(db)
	if err := seed.Run(context.Background(), productRepo, slog.Default()); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// checkRequiredTables はマイグレーション適用済みであることをテーブル存在で確認する。
var checkRequiredTables = []string{
	"users", "identities", "sessions",
	"people", "special_dates", "reminders",
	"products", "gift_lists", "gift_list_products",
	"bookmarks", "likes",
}

// runCheck はデプロイ前の環境診断を実行する。
// DB接続・必須テーブルの存在・Anthropic APIキーの設定を確認し、
// いずれかが欠けている場合はエラーを返す。
func runCheck(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connectivity check failed: %w", err)
	}
	slog.Info("database connectivity: ok")

	var missing []string
	for _, table := range checkRequiredTables {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables
			 WHERE table_schema = 'public' AND table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("table check failed for %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tables are missing (run migrate): %v", missing)
	}
	slog.Info("required tables: ok", slog.Int("count", len(checkRequiredTables)))

	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	slog.Info("anthropic api key: ok")

	slog.Info("all checks passed")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

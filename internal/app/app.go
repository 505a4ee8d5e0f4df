package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/switchtrack/internal/auth"
	"github.com/hitoshi/switchtrack/internal/config"
	"github.com/hitoshi/switchtrack/internal/database"
	"github.com/hitoshi/switchtrack/internal/history"
	"github.com/hitoshi/switchtrack/internal/ingest"
	"github.com/hitoshi/switchtrack/internal/logger"
	"github.com/hitoshi/switchtrack/internal/metrics"
	"github.com/hitoshi/switchtrack/internal/pipeline"
	"github.com/hitoshi/switchtrack/internal/repository"
	"github.com/hitoshi/switchtrack/internal/security"
	"github.com/hitoshi/switchtrack/internal/translation"
	"github.com/hitoshi/switchtrack/internal/web"
	collectpkg "github.com/hitoshi/switchtrack/internal/worker/collect"
)

// 画像プロキシの上流フェッチ設定。
const (
	imageFetchTimeout = 10 * time.Second
	imageMaxSize      = 5 * 1024 * 1024
)

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
	)

	switch cmd {
	case CommandAuth:
		return runAuth(cfg)
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandTranslate:
		return runTranslate(cfg, w, args[1:])
	default:
		return runCollect(cfg)
	}
}

// connectDB はDB接続を開いて疎通確認まで行う。
func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// buildAuthService はトークンライフサイクルサービスを組み立てる。
// interactiveがfalseの場合は対話フローなしで構築し、
// 認証情報が欠けていればAUTHENTICATION_FAILEDで即座に失敗する（ワーカー向け）。
func buildAuthService(cfg *config.Config, interactive bool) (*auth.Service, *auth.Client, *auth.FileCredentialStore) {
	store := auth.NewFileCredentialStore(cfg.TokenFile)
	client := auth.NewClient(auth.ClientConfig{
		ClientID:   cfg.NintendoClientID,
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
	})

	var flow auth.InteractiveAuthenticator
	if interactive {
		flow = auth.NewFlow(client, store, os.Stdin, os.Stdout, cfg.AuthMaxAttempts, slog.Default())
	}

	svc := auth.NewService(store, client, flow,
		auth.ServiceConfig{RefreshMargin: cfg.TokenRefreshMargin},
		slog.Default(),
	)
	return svc, client, store
}

// buildPipeline は収集サイクルの全依存関係をワイヤリングする。
func buildPipeline(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, interactive bool) *pipeline.Pipeline {
	collector := metrics.NewCollector(reg)

	// 1. トークンライフサイクル
	tokenSvc, _, _ := buildAuthService(cfg, interactive)
	tokenSvc.SetMetrics(collector)

	// 2. 履歴APIフェッチャーとスナップショットアーカイブ
	fetcher := history.NewFetcher(history.FetcherConfig{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
	}, slog.Default())
	// 対話認証で得た直後のトークンのみ疎通確認する
	tokenSvc.SetProber(fetcher)
	archiver := history.NewArchiver(cfg.SnapshotDir, slog.Default())

	// 3. 取り込みサービス
	ingestStore := repository.NewPostgresIngestStore(db)
	sanitizer := security.NewNameSanitizer()
	ingestSvc := ingest.NewService(ingestStore, sanitizer, slog.Default())

	// 4. 排他ロック
	locker := repository.NewPostgresAdvisoryLock(db)

	return pipeline.New(tokenSvc, fetcher, archiver, ingestSvc, locker, collector, slog.Default())
}

// runCollect は収集サイクルを1回実行して終了する。
// セッショントークンが未保存の場合は対話認証フローを起動する。
func runCollect(cfg *config.Config) error {
	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipe := buildPipeline(cfg, db, prometheus.NewRegistry(), true)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := pipe.Run(ctx); err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}
	return nil
}

// runAuth は対話認証フローを単体で実行する。
// 取得した認証情報で履歴APIへの疎通確認まで行い、結果を報告する。
func runAuth(cfg *config.Config) error {
	_, client, store := buildAuthService(cfg, false)
	flow := auth.NewFlow(client, store, os.Stdin, os.Stdout, cfg.AuthMaxAttempts, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bundle, err := flow.Run(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	var prober auth.Prober = history.NewFetcher(history.FetcherConfig{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
	}, slog.Default())

	if err := prober.Probe(ctx, bundle); err != nil {
		return fmt.Errorf("history API probe failed: %w", err)
	}

	slog.Info("authentication completed and verified against history API",
		slog.String("token_file", cfg.TokenFile),
	)
	return nil
}

// runServe はダッシュボードAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	statsRepo := repository.NewPostgresStatsRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	imageClient := ssrfGuard.NewSafeClient(imageFetchTimeout, imageMaxSize)

	// 4. ルーターの構築
	registry := prometheus.NewRegistry()
	router := web.NewRouter(&web.RouterDeps{
		Stats:       statsRepo,
		SSRFGuard:   ssrfGuard,
		ImageClient: imageClient,
		Gatherer:    registry,
		Logger:      slog.Default(),
	})

	// 5. HTTPサーバーの起動
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は収集ワーカーモードで起動する。
// DB接続を開き、収集スケジューラを起動する。トークンは保存済みの
// セッショントークンからリフレッシュし、対話認証は行わない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 収集パイプラインの組み立て（非対話）
	registry := prometheus.NewRegistry()
	pipe := buildPipeline(cfg, db, registry, false)

	// 3. スケジューラの初期化
	scheduler := collectpkg.NewScheduler(pipe, slog.Default())

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

	// 4. メトリクスとヘルスチェックの公開（Prometheusスクレイプ用）
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	slog.Info("worker starting",
		slog.Duration("collect_interval", cfg.CollectInterval),
	)

	// 収集スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.CollectInterval)

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

// runTranslate は翻訳CSVワークフローを実行する。
//
//	translate export [file]  未翻訳タイトルをCSVで出力（fileならファイル、省略時は標準出力）
//	translate import <file>  翻訳済みCSVを取り込み、gamesテーブルへ反映
func runTranslate(cfg *config.Config, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("translate requires a subcommand: export or import")
	}

	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewPostgresTranslationRepo(db)
	svc := translation.NewService(repo, security.NewNameSanitizer(), slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "export":
		out := w
		if len(args) > 1 {
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()
			out = f
		}
		count, err := svc.ExportUntranslated(ctx, out)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		slog.Info("exported untranslated games", slog.Int("count", count))
		return nil

	case "import":
		if len(args) < 2 {
			return fmt.Errorf("translate import requires a CSV file path")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		imported, applied, err := svc.Import(ctx, f)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		slog.Info("imported translations",
			slog.Int("imported", imported),
			slog.Int("applied", applied),
		)
		return nil

	default:
		return fmt.Errorf("unknown translate subcommand: %s", args[0])
	}
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

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/giftman/internal/metrics"
	"github.com/hitoshi/giftman/internal/middleware"
	"github.com/hitoshi/giftman/internal/product"
	"github.com/hitoshi/giftman/internal/realtime"
)

// HealthChecker はヘルスチェックのDB接続確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 人物
	PersonService PersonServiceInterface
	PersonParser  PersonParser

	// 特別な日付
	SpecialDateService SpecialDateServiceInterface

	// 商品
	ProductService ProductServiceInterface
	SearchEnhancer SearchEnhancer
	Debouncer      *product.Debouncer
	Hub            *realtime.Hub

	// ギフトリスト
	GiftListService GiftListServiceInterface

	// 推薦・チャット
	Recommender Recommender
	ChatService ChatServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 運用エンドポイント
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
	Metrics       middleware.HTTPStatusRecorder

	// CSRF
	CSRFConfig middleware.CSRFConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS →
//	Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）と運用ルート（/health、/metrics）はセッションチェーンの外に配置する。
// LLM呼び出しを伴うエンドポイントにはAI専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効く共通ミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default(), deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	personHandler := NewPersonHandler(deps.PersonService, deps.PersonParser)
	dateHandler := NewSpecialDateHandler(deps.SpecialDateService)
	productHandler := NewProductHandler(deps.ProductService, deps.SearchEnhancer, deps.Debouncer, deps.Hub)
	listHandler := NewGiftListHandler(deps.GiftListService)
	recommendationHandler := NewRecommendationHandler(deps.Recommender, deps.PersonService)
	chatHandler := NewChatHandler(deps.ChatService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 運用ルート
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// CSRFトークン取得（セッション不要、フロントエンドが最初に呼ぶ）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		aiLimit := deps.RateLimiter.AIMiddleware()

		// 人物管理
		r.Route("/api/people", func(r chi.Router) {
			r.Post("/", personHandler.CreatePerson)
			r.Get("/", personHandler.ListPeople)

			// POST /api/people/parse - AIパース（AI専用レート制限を追加）
			r.With(aiLimit).Post("/parse", personHandler.ParsePerson)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", personHandler.GetPerson)
				r.Put("/", personHandler.UpdatePerson)
				r.Delete("/", personHandler.DeletePerson)
			})
		})

		// 特別な日付管理
		r.Route("/api/dates", func(r chi.Router) {
			r.Post("/", dateHandler.CreateSpecialDate)
			r.Get("/", dateHandler.ListSpecialDates)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", dateHandler.GetSpecialDate)
				r.Put("/", dateHandler.UpdateSpecialDate)
				r.Delete("/", dateHandler.DeleteSpecialDate)
			})
		})

		// 商品管理
		r.Route("/api/products", func(r chi.Router) {
			r.Post("/", productHandler.CreateProduct)
			r.Get("/", productHandler.ListProducts)
			r.Get("/bookmarks", productHandler.ListBookmarks)

			// POST /api/products/search/enhance - AI検索拡張（AI専用レート制限を追加）
			r.With(aiLimit).Post("/search/enhance", productHandler.EnhanceSearch)

			// GET /api/products/events - 商品変更のSSEストリーム
			r.Get("/events", productHandler.ProductEvents)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.Put("/", productHandler.UpdateProduct)
				r.Delete("/", productHandler.DeleteProduct)

				r.Put("/bookmark", productHandler.BookmarkProduct)
				r.Delete("/bookmark", productHandler.UnbookmarkProduct)
				r.Put("/like", productHandler.LikeProduct)
				r.Delete("/like", productHandler.UnlikeProduct)
			})
		})

		// ギフトリスト管理
		r.Route("/api/lists", func(r chi.Router) {
			r.Post("/", listHandler.CreateList)
			r.Get("/", listHandler.ListLists)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listHandler.GetList)
				r.Delete("/", listHandler.DeleteList)

				r.Get("/products", listHandler.ListProductsInList)
				r.Put("/products", listHandler.AddProductToList)
				r.Delete("/products", listHandler.RemoveProductFromList)
			})
		})

		// ギフト推薦（AI専用レート制限を追加）
		r.With(aiLimit).Post("/api/recommendations", recommendationHandler.Recommend)

		// AIチャット
		r.Route("/api/chat", func(r chi.Router) {
			r.With(aiLimit).Post("/", chatHandler.Chat)
			r.Post("/confirm", chatHandler.ConfirmAction)
			r.Post("/retry", chatHandler.RetryAI)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はヘルスチェックハンドラーを返す。DB接続を確認する。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

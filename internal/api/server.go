package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Su5hant/sow-backend/internal/api/auth"
	"github.com/Su5hant/sow-backend/internal/api/middleware"
	"github.com/Su5hant/sow-backend/internal/config"
	"github.com/Su5hant/sow-backend/internal/model"
	"github.com/Su5hant/sow-backend/internal/pkg/metrics"
	"github.com/Su5hant/sow-backend/internal/pkg/notify"
	"github.com/Su5hant/sow-backend/internal/pkg/ratelimit"
	"github.com/Su5hant/sow-backend/internal/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、各资源 Store 以及 Gin 路由引擎。
type Server struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *gorm.DB
	rdb          *redis.Client
	router       *gin.Engine
	codec        *token.Codec
	auth         *auth.Handler
	limiter      *ratelimit.RateLimiter
	products     ProductStore
	translations TranslationStore
}

// dbUserStore 是 auth.UserStore 的 gorm 实现。
//
// 所有写入都是单行提交：令牌消费与它授权的状态变更落在同一条 UPDATE 里。
type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) FindByResetToken(ctx context.Context, resetToken string) (*model.User, error) {
	if resetToken == "" {
		return nil, nil
	}
	var user model.User
	err := s.db.WithContext(ctx).Where("reset_token = ?", resetToken).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s dbUserStore) Save(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化令牌编解码器、邮件通知器与限流器
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Product{}, &model.Translation{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	codec := token.NewCodec(
		cfg.Security.JWTSecret,
		time.Duration(cfg.Security.AccessTokenExpireMinutes)*time.Minute,
		time.Duration(cfg.Security.EmailTokenExpireHours)*time.Hour,
	)
	mailer := notify.NewEmailNotifier(&cfg.Email, cfg.App.FrontendURL, cfg.Security.EmailTokenExpireHours, logger)
	limiter := ratelimit.NewRedisRateLimiter(rdb, logger, "sow:ratelimit:auth", cfg.App.AuthRate, cfg.App.AuthBurst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		rdb:          rdb,
		router:       r,
		codec:        codec,
		auth:         auth.NewHandler(dbUserStore{db: db}, mailer, codec, logger),
		limiter:      limiter,
		products:     dbProductStore{db: db},
		translations: dbTranslationStore{db: db},
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 释放数据库与 Redis 连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "SOW Backend API is running!"})
	})

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/api/health", s.handleHealth)

	// 认证接口统一套一层按 IP 的限流
	authGroup := s.router.Group("/api/auth")
	authGroup.Use(middleware.RateLimit(s.limiter))
	authGroup.POST("/register", s.auth.Register)
	authGroup.POST("/login", s.auth.Login)
	authGroup.POST("/refresh", s.auth.Refresh)
	authGroup.POST("/forgot-password", s.auth.ForgotPassword)
	authGroup.POST("/reset-password", s.auth.ResetPassword)
	authGroup.POST("/verify-email", s.auth.VerifyEmail)
	authGroup.POST("/resend-verification", s.auth.ResendVerification)

	authedAuth := authGroup.Group("")
	authedAuth.Use(middleware.AuthMiddleware(s.codec))
	authedAuth.POST("/change-password", s.auth.ChangePassword)
	authedAuth.POST("/logout", s.auth.Logout)
	authedAuth.GET("/me", s.auth.Me)

	products := s.router.Group("/api/products")
	products.GET("", s.handleListProducts)
	authedProducts := products.Group("")
	authedProducts.Use(middleware.AuthMiddleware(s.codec), s.auth.RequireActiveUser())
	authedProducts.POST("", s.handleCreateProduct)
	authedProducts.GET("/article/:article_number", s.handleGetProductByArticle)
	authedProducts.GET("/:id", s.handleGetProduct)
	authedProducts.PUT("/:id", s.handleUpdateProduct)
	authedProducts.PATCH("/:id/stock", s.handleUpdateProductStock)
	authedProducts.PATCH("/:id/price", s.handleUpdateProductPrice)
	authedProducts.DELETE("/:id", s.handleDeleteProduct)

	translations := s.router.Group("/api/translations")
	translations.GET("/language/:language_code", s.handleLanguagePack)
	translations.GET("/category/:category", s.handleTranslationsByCategory)
	translations.GET("/languages", s.handleAvailableLanguages)
	translations.GET("/search", s.handleSearchTranslations)
	translations.GET("/stats", s.handleTranslationStats)
	translations.GET("/:id", s.handleGetTranslation)
	authedTranslations := translations.Group("")
	authedTranslations.Use(middleware.AuthMiddleware(s.codec), s.auth.RequireActiveUser())
	authedTranslations.POST("", s.handleCreateTranslation)
	authedTranslations.POST("/bulk", s.handleBulkCreateTranslations)
	authedTranslations.PUT("/:id", s.handleUpdateTranslation)
	authedTranslations.DELETE("/:id", s.handleDeleteTranslation)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/internal/service"
	"github.com/noah-isme/session-auth-api/internal/token"
	"github.com/noah-isme/session-auth-api/pkg/cache"
	"github.com/noah-isme/session-auth-api/pkg/config"
	"github.com/noah-isme/session-auth-api/pkg/database"
	"github.com/noah-isme/session-auth-api/pkg/logger"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	pool    *database.Pool
	redis   *redis.Client
	metrics *service.MetricsService
	codec   *token.Codec
	auth    *service.AuthService
	oauth   *service.OAuthService
}

func newApp(withRedis bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	response.LoginPath = cfg.Session.LoginPath

	a := &app{cfg: cfg, logger: logr}
	if cfg.Metrics.Enabled {
		a.metrics = service.NewMetricsService()
	}

	pool, err := database.NewPostgres(cfg.Database)
	if err != nil {
		_ = logr.Sync()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pool.SetObserver(a.metrics.ObserveDBQuery)
	a.pool = pool

	if withRedis && (cfg.Cache.Enabled || cfg.OAuth.Enabled()) {
		client, err := cache.NewRedis(cfg.Redis, 3*time.Second)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache and social login", zap.Error(err))
		} else {
			a.redis = client
		}
	}

	a.codec = token.NewCodec(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(a.redis, "auth"),
		a.metrics,
		cfg.Cache.TTL,
		logr,
		cfg.Cache.Enabled && a.redis != nil,
	)
	a.auth = service.NewAuthService(repository.NewUserRepository(pool), a.codec, cacheSvc, a.metrics, validator.New(), logr)

	oauthCfg := cfg.OAuth
	if a.redis == nil {
		oauthCfg = config.OAuthConfig{}
	}
	a.oauth = service.NewOAuthService(oauthCfg, cfg.Session.DashboardPath, repository.NewOAuthStateRepository(a.redis), a.auth, logr)

	logr.Debug("application initialised",
		zap.String("env", cfg.Env),
		zap.Bool("metrics", a.metrics != nil),
		zap.Bool("cache", cacheSvc.Enabled()),
		zap.Bool("social_login", a.oauth.Enabled()))
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) createUser(cmd *cobra.Command, userID, name, email, password, role string) error {
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if name == "" {
		name = userID
	}

	req := models.CreateUserRequest{UserID: userID, UserNm: name, Email: email, Password: password}
	if role != "" {
		req.Role = &role
	}

	user, err := a.auth.CreateLocalUser(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s>\n", user.UserID, user.Email)
	return nil
}

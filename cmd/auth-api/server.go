package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/session-auth-api/api/swagger"
	"github.com/noah-isme/session-auth-api/internal/handler"
	"github.com/noah-isme/session-auth-api/internal/middleware"
	"github.com/noah-isme/session-auth-api/internal/service"
	"github.com/noah-isme/session-auth-api/pkg/config"
	"github.com/noah-isme/session-auth-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/session-auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/session-auth-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

func (a *app) router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	cookies := handler.NewSessionCookies(a.cfg.SecureCookies())
	authHandler := handler.NewAuthHandler(a.auth, cookies, a.logger)
	tokenHandler := handler.NewTokenHandler(a.auth, cookies, a.logger)
	oauthHandler := handler.NewOAuthHandler(a.oauth, cookies, a.cfg.Session.LoginPath)
	metricsHandler := handler.NewMetricsHandler(a.metrics, a.pool)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(a.cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/verify", authHandler.Verify)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", middleware.Session(a.auth, cookies), authHandler.Me)
	auth.POST("/social-callback", authHandler.SocialCallback)
	auth.GET("/social/"+service.ProviderGoogle, oauthHandler.Start)
	auth.GET("/social/"+service.ProviderGoogle+"/callback", oauthHandler.Callback)

	tokens := api.Group("/token")
	tokens.GET("/expiry", tokenHandler.Expiry)
	tokens.POST("/invalidate", tokenHandler.Invalidate)

	return r
}

// serve runs the HTTP server and the session sweeper until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	sweeper := service.NewSessionSweeper(a.auth, a.cfg.Session.SweepInterval, a.logger)
	if err := sweeper.Start(ctx); err != nil {
		a.logger.Warn("session sweeper not started", zap.Error(err))
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

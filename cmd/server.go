/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/api"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/container"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/metrics"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the FieldOps API server.
The server will listen on the configured host and port,
and provide REST API interfaces for hierarchy, task progress and finance review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		log := logger.Component("server")

		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer func() { _ = ctr.Close() }()

		if cfg.Tracing.Enabled {
			if err := api.InitTracing(cfg.Tracing, cfg.Env); err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			defer func() { _ = api.ShutdownTracing(context.Background()) }()
		}

		router, err := api.SetupRoutes(routeDependencies(ctr))
		if err != nil {
			return fmt.Errorf("failed to set up routes: %w", err)
		}

		collector := metrics.NewCollector(ctr.DB(), 30*time.Second)
		collector.Start()
		defer collector.Stop()

		// 配置文件变化时热更新日志级别
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(previous, updated *config.Config) {
				if previous.Log.Level != updated.Log.Level {
					logger.SetLevel(updated.Log.Level)
				}
				log.WithField("sections", config.ChangedSections(previous, updated)).Info("config reloaded")
			})
			if err := watcher.Start(); err != nil {
				log.WithError(err).Warn("config watcher disabled")
			} else {
				defer watcher.Stop()
			}
		}

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		case <-quit:
		}

		log.Info("shutting down server")

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info("server exited")
		return nil
	},
}

// routeDependencies 从容器取出路由依赖
func routeDependencies(ctr *container.Container) *api.Dependencies {
	return &api.Dependencies{
		Config:     ctr.Config(),
		DB:         ctr.DB(),
		Validator:  ctr.KeycloakValidator(),
		Accounts:   ctr.Accounts(),
		Hierarchy:  ctr.HierarchyService(),
		Tasks:      ctr.TaskService(),
		Progress:   ctr.ProgressService(),
		Finance:    ctr.FinanceService(),
		Query:      ctr.QueryService(),
		Statistics: ctr.StatisticsService(),
		Reports:    ctr.ReportService(),
		Audit:      ctr.AuditLogService(),
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

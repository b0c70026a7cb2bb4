package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docingest-go/internal/handler"
	"docingest-go/internal/service"
	"docingest-go/pkg/kafka"
	"docingest-go/pkg/log"
	"docingest-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API（启用 Kafka 时同时启动任务消费者）",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. 初始化配置与日志
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// 2. 启用 Kafka 时导入任务经由 Kafka 分发
			var opts []service.IngestOption
			var producer *kafka.Producer
			if cfg.Kafka.Enabled {
				producer = kafka.NewProducer(cfg.Kafka)
				defer func() {
					if err := producer.Close(); err != nil {
						log.Errorf("关闭 Kafka 生产者失败: %v", err)
					}
				}()
				opts = append(opts, service.WithDispatcher(producer))
			}

			// 3. 组装组件
			a, err := buildApp(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			// 4. 启动后台 Kafka 消费者
			consumerDone := make(chan struct{})
			if cfg.Kafka.Enabled {
				go func() {
					defer close(consumerDone)
					kafka.StartConsumer(ctx, cfg.Kafka, a.ingest)
				}()
			} else {
				close(consumerDone)
			}

			// 5. 注册路由
			gin.SetMode(cfg.Server.Mode)
			var jwtManager *token.JWTManager
			if cfg.Auth.Enabled {
				jwtManager = token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpireHours)
			} else {
				log.Warnf("API 认证已关闭")
			}
			r := handler.NewRouter(handler.Handlers{
				Ingest: handler.NewIngestHandler(a.ingest, a.documents, handler.DefaultProgressInterval),
				Search: handler.NewSearchHandler(a.search, a.documents),
				Health: handler.NewHealthHandler(cfg.Server.Version, a.checks),
			}, jwtManager)

			// 6. 启动 HTTP 服务器并实现优雅停机
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
				Handler: r,
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Infof("服务启动于 %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("HTTP 服务监听失败: %w", err)
				}
			case <-ctx.Done():
			}
			log.Info("接收到停机信号，正在关闭服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("HTTP 服务器关闭失败: %v", err)
			}
			stop()
			<-consumerDone
			log.Info("服务已优雅关闭")
			return nil
		},
	}
}

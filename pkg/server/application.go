package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"tsync-social/pkg/config"
	"tsync-social/pkg/database"
	"tsync-social/pkg/kafka"
	"tsync-social/pkg/lifecycle"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/middleware"
	"tsync-social/pkg/redis"
	"tsync-social/pkg/snowflake"
	"tsync-social/pkg/telemetry"
)

// Application 应用程序框架
type Application struct {
	serviceName   string
	config        *config.Config
	logger        logger.Logger
	kratosLogger  kratoslog.Logger
	serverManager *ServerManager
	lifecycle     *lifecycle.LifecycleManager
	telemetry     *telemetry.Provider
	idGenerator   *snowflake.Snowflake

	// 基础设施组件，未配置的为nil
	postgreSQL    *database.PostgreSQL
	mongoDB       *database.MongoDB
	redisClient   *redis.RedisClient
	kafkaProducer *kafka.Producer

	// 中间件
	authMiddleware    *middleware.AuthMiddleware
	loggingMiddleware *middleware.LoggingMiddleware
	otelMiddleware    *middleware.OTelMiddleware

	httpRouteRegister func(*gin.Engine)
}

// NewApplication 创建应用程序
func NewApplication(serviceName string) (*Application, error) {
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	kratosLogger := logger.NewKratosLogger(log, cfg.App.Name, cfg.App.Version)

	telemetryCfg := telemetry.DefaultConfig(serviceName)
	if cfg.Telemetry.Debug {
		telemetryCfg = telemetry.DevelopmentConfig(serviceName)
	}
	telemetryCfg.ServiceVersion = cfg.App.Version
	telemetryCfg.SampleRate = cfg.Telemetry.SampleRate
	telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	provider, err := telemetry.NewProvider(telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	idGenerator, err := snowflake.NewSnowflake(cfg.App.MachineID)
	if err != nil {
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	app := &Application{
		serviceName:       serviceName,
		config:            cfg,
		logger:            log,
		kratosLogger:      kratosLogger,
		serverManager:     NewServerManager(cfg, kratosLogger),
		lifecycle:         lifecycle.NewLifecycleManager(kratosLogger),
		telemetry:         provider,
		idGenerator:       idGenerator,
		authMiddleware:    middleware.NewAuthMiddleware(kratosLogger, cfg.App.JWTSecret),
		loggingMiddleware: middleware.NewLoggingMiddleware(kratosLogger),
		otelMiddleware:    middleware.NewOTelMiddleware(serviceName),
	}

	if err := app.initInfrastructure(); err != nil {
		_ = app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

// initInfrastructure 按配置初始化基础设施组件
func (app *Application) initInfrastructure() error {
	postgreSQL, err := database.NewPostgreSQL(app.config.Database.PostgreSQL.DSN, app.config.Database.PostgreSQL.DBName)
	if err != nil {
		return fmt.Errorf("connect PostgreSQL: %w", err)
	}
	app.postgreSQL = postgreSQL

	if app.config.Notification.Store == "mongo" {
		mongoDB, err := database.NewMongoDB(app.config.Database.MongoDB.URI, app.config.Database.MongoDB.DBName)
		if err != nil {
			return fmt.Errorf("connect MongoDB: %w", err)
		}
		app.mongoDB = mongoDB
	}

	if app.config.Presence.Backplane {
		redisClient := redis.NewRedisClient(app.config.Redis.Addr, app.config.Redis.Password, app.config.Redis.DB)
		app.redisClient = redisClient
		if err := redisClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("connect Redis: %w", err)
		}
	}

	if app.config.Kafka.Enabled() {
		producer, err := kafka.InitProducer(app.config.Kafka.Brokers, app.logger)
		if err != nil {
			return fmt.Errorf("connect Kafka: %w", err)
		}
		app.kafkaProducer = producer
	}

	app.logger.Info(context.Background(), "Infrastructure initialized",
		logger.F("mongodb", app.mongoDB != nil),
		logger.F("redis", app.redisClient != nil),
		logger.F("kafka", app.kafkaProducer != nil))
	return nil
}

// closeInfrastructure 关闭已初始化的组件
func (app *Application) closeInfrastructure() error {
	var errs []error
	if app.kafkaProducer != nil {
		errs = append(errs, app.kafkaProducer.Close())
	}
	if app.redisClient != nil {
		errs = append(errs, app.redisClient.Close())
	}
	if app.mongoDB != nil {
		errs = append(errs, app.mongoDB.Close())
	}
	if app.postgreSQL != nil {
		errs = append(errs, app.postgreSQL.Close())
	}
	return errors.Join(errs...)
}

// EnableHTTP 启用HTTP服务器并挂载通用中间件
func (app *Application) EnableHTTP() HTTPServer {
	httpServer := app.serverManager.EnableHTTP()

	httpServer.RegisterRoutes(func(engine *gin.Engine) {
		engine.Use(middleware.Recovery(app.logger))
		if origins := app.config.Server.HTTP.AllowOrigins; len(origins) > 0 {
			engine.Use(middleware.CORS(origins))
		}
		engine.Use(app.otelMiddleware.GinMiddleware()...)
		engine.Use(app.loggingMiddleware.GinLogging())
		engine.Use(app.authMiddleware.GinAuth())
		engine.Use(middleware.UserSpanAttributes())
	})

	return httpServer
}

// EnableWebSocket 启用WebSocket连接管理
func (app *Application) EnableWebSocket() *WebSocketServerWrapper {
	return app.serverManager.EnableWebSocket()
}

// RegisterHTTPRoutes 注册HTTP路由
func (app *Application) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) {
	app.httpRouteRegister = registerFunc
}

// AddHook 注册业务生命周期钩子
func (app *Application) AddHook(hook lifecycle.Hook) {
	app.lifecycle.AddHook(hook)
}

// GetPostgreSQL 获取PostgreSQL连接
func (app *Application) GetPostgreSQL() *database.PostgreSQL {
	return app.postgreSQL
}

// GetMongoDB 获取MongoDB连接，未启用时为nil
func (app *Application) GetMongoDB() *database.MongoDB {
	return app.mongoDB
}

// GetRedisClient 获取Redis客户端，未启用时为nil
func (app *Application) GetRedisClient() *redis.RedisClient {
	return app.redisClient
}

// GetKafkaProducer 获取Kafka生产者，未启用时为nil
func (app *Application) GetKafkaProducer() *kafka.Producer {
	return app.kafkaProducer
}

// GetIDGenerator 获取ID生成器
func (app *Application) GetIDGenerator() *snowflake.Snowflake {
	return app.idGenerator
}

// GetLogger 获取日志器
func (app *Application) GetLogger() logger.Logger {
	return app.logger
}

// GetKratosLogger 获取Kratos日志器
func (app *Application) GetKratosLogger() kratoslog.Logger {
	return app.kratosLogger
}

// GetConfig 获取配置
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Run 运行应用程序，阻塞直到收到停止信号
func (app *Application) Run() error {
	if err := app.registerLifecycleHooks(); err != nil {
		return err
	}

	if err := app.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle: %w", err)
	}

	app.lifecycle.Wait()
	return nil
}

// registerLifecycleHooks 注册生命周期钩子
func (app *Application) registerLifecycleHooks() error {
	if app.httpRouteRegister != nil {
		if err := app.serverManager.RegisterHTTPRoutes(app.httpRouteRegister); err != nil {
			return err
		}
	}

	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "infrastructure",
		Priority: 0,
		OnStop: func(ctx context.Context) error {
			err := app.closeInfrastructure()
			if shutdownErr := app.telemetry.Shutdown(ctx); shutdownErr != nil {
				err = errors.Join(err, shutdownErr)
			}
			_ = app.logger.Sync()
			return err
		},
	})

	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "servers",
		Priority: 200,
		OnStart:  app.serverManager.StartAll,
		OnStop:   app.serverManager.StopAll,
	})
	return nil
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"tsync-social/apps/social-service/internal/dao"
	"tsync-social/apps/social-service/internal/handler"
	"tsync-social/apps/social-service/internal/service"
	"tsync-social/pkg/config"
	"tsync-social/pkg/kafka"
	"tsync-social/pkg/lifecycle"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/presence"
	"tsync-social/pkg/server"
)

func main() {
	serviceName := "social-service"

	// 创建应用程序，加载配置并连接基础设施
	app, err := server.NewApplication(serviceName)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	cfg := app.GetConfig()
	appLogger := app.GetLogger()

	app.EnableHTTP()
	wsServer := app.EnableWebSocket()

	// 自动迁移数据库表结构
	postgreSQL := app.GetPostgreSQL()
	if err := postgreSQL.AutoMigrate(dao.Models()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化DAO层
	relationDAO := dao.NewRelationshipDAO(postgreSQL)
	notificationDAO, err := newNotificationDAO(app)
	if err != nil {
		log.Fatalf("Failed to init notification store: %v", err)
	}

	// 在线状态与推送，多实例时通过Redis转发推送并共享在线目录
	registry := presence.NewRegistry()
	var routerOpts []presence.Option
	var directory *presence.RedisDirectory
	if cfg.Presence.Backplane {
		backplane := presence.NewRedisBackplane(app.GetRedisClient(), cfg.Presence.Channel, appLogger)
		directory = presence.NewRedisDirectory(app.GetRedisClient(), registry, appLogger)
		routerOpts = append(routerOpts, presence.WithBackplane(backplane), presence.WithDirectory(directory))
	}
	router := presence.NewRouter(registry, appLogger, routerOpts...)

	// 领域事件发布，未配置Kafka时关闭
	var publisher service.EventPublisher
	if producer := app.GetKafkaProducer(); producer != nil {
		publisher = service.NewKafkaEventPublisher(producer, cfg.Kafka.EventTopic)
	}

	// 初始化Service层
	idGenerator := app.GetIDGenerator()
	notificationService := service.NewNotificationService(notificationDAO, idGenerator, router, service.NotificationOptions{
		DefaultFilter: cfg.Notification.DefaultFilter,
		PageSize:      cfg.Notification.PageSize,
		MaxPageSize:   cfg.Notification.MaxPageSize,
	}, appLogger)
	relationshipService := service.NewRelationshipService(relationDAO, idGenerator, notificationService, publisher, appLogger)

	// 初始化Handler层
	httpHandler := handler.NewHTTPHandler(relationshipService, notificationService, router, wsServer, handler.WebSocketOptions{
		SendBuffer:   cfg.Presence.SendBuffer,
		PingInterval: parseDuration(cfg.Presence.PingInterval, 30*time.Second),
	}, appLogger)

	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	app.AddHook(lifecycle.Hook{
		Name:     "presence",
		Priority: 50,
		OnStart:  router.Start,
		OnStop: func(ctx context.Context) error {
			return router.Close()
		},
	})

	if directory != nil {
		app.AddHook(lifecycle.Hook{
			Name:     "presence-directory",
			Priority: 60,
			OnStart:  directory.Start,
			OnStop:   directory.Stop,
		})
	}

	app.AddHook(lifecycle.Hook{
		Name:     "friendship-repair",
		Priority: 100,
		OnStart: func(ctx context.Context) error {
			repaired, err := relationshipService.RepairFriendships(ctx)
			if err != nil {
				// 修复失败不阻止启动，下次启动会重试
				appLogger.Error(ctx, "Friendship repair failed", logger.F("error", err))
				return nil
			}
			appLogger.Info(ctx, "Friendship repair finished", logger.F("repaired", repaired))
			return nil
		},
	})

	if cfg.Kafka.Enabled() {
		addScheduleConsumer(app, cfg, router, appLogger)
	}

	// 运行应用程序
	if err := app.Run(); err != nil {
		log.Fatalf("Application exited: %v", err)
	}
}

// newNotificationDAO 按配置选择通知存储
func newNotificationDAO(app *server.Application) (dao.NotificationDAO, error) {
	if app.GetConfig().Notification.Store != "mongo" {
		return dao.NewNotificationDAO(app.GetPostgreSQL()), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dao.EnsureNotificationIndexes(ctx, app.GetMongoDB()); err != nil {
		return nil, err
	}
	return dao.NewNotificationMongoDAO(app.GetMongoDB()), nil
}

// addScheduleConsumer 消费外部日程事件
func addScheduleConsumer(app *server.Application, cfg *config.Config, router *presence.Router, appLogger logger.Logger) {
	var consumer *kafka.Consumer
	app.AddHook(lifecycle.Hook{
		Name:     "schedule-consumer",
		Priority: 150,
		OnStart: func(ctx context.Context) error {
			var err error
			consumer, err = kafka.InitConsumer(kafka.KafkaConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID,
				Topics:  []string{cfg.Kafka.ScheduleTopic},
			}, service.NewScheduleConsumer(router, appLogger), appLogger)
			if err != nil {
				return err
			}
			consumer.Start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Close()
		},
	})
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

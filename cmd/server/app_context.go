package main

import (
	"log"

	"github.com/AvertonDias/lista-limpeza-facil/internal/channels/email"
	"github.com/AvertonDias/lista-limpeza-facil/internal/channels/webpush"
	"github.com/AvertonDias/lista-limpeza-facil/internal/config"
	"github.com/AvertonDias/lista-limpeza-facil/internal/database"
	"github.com/AvertonDias/lista-limpeza-facil/internal/idempotency"
	"github.com/AvertonDias/lista-limpeza-facil/internal/inbox"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
	"github.com/AvertonDias/lista-limpeza-facil/internal/queue"
	"github.com/AvertonDias/lista-limpeza-facil/internal/recorder"
	"github.com/AvertonDias/lista-limpeza-facil/internal/status"
	"github.com/AvertonDias/lista-limpeza-facil/internal/tokens"
	"github.com/AvertonDias/lista-limpeza-facil/internal/users"

	redis "github.com/redis/go-redis/v9"
)

// AppContext 应用运行时上下文
// 聚合所有运行期依赖,统一管理生命周期
type AppContext struct {
	Config config.Config

	RedisClient *redis.Client
	MySQL       *database.MySQLDB

	Users       *users.MySQLStore
	Registry    push.TokenRegistry
	Dispatcher  *push.Dispatcher
	RecordStore *recorder.RedisStore
	InboxStore  inbox.Store
	StatusStore status.StatusStore
	Idempotency idempotency.Checker
	Mailer      *email.Mailer

	ListEnqueuer     queue.Enqueuer
	FeedbackEnqueuer queue.Enqueuer
}

// Close 释放应用上下文持有的所有资源
// 按照依赖关系倒序释放,避免资源泄漏
func (appContext *AppContext) Close() {
	if appContext.ListEnqueuer != nil {
		appContext.ListEnqueuer.Close()
	}

	if appContext.FeedbackEnqueuer != nil {
		appContext.FeedbackEnqueuer.Close()
	}

	if appContext.MySQL != nil {
		appContext.MySQL.Close()
	}

	if appContext.RedisClient != nil {
		appContext.RedisClient.Close()
	}
}

//
// 应用初始化器
//

// ApplicationInitializer 应用初始化器
// 负责构建完整的应用运行上下文
type ApplicationInitializer struct {
	configuration config.Config
	redisClient   *redis.Client
	mysqlDatabase *database.MySQLDB
}

// NewApplicationInitializer 创建应用初始化器实例
func NewApplicationInitializer(configuration config.Config) *ApplicationInitializer {
	return &ApplicationInitializer{
		configuration: configuration,
	}
}

// Initialize 初始化应用上下文
// 按照依赖关系依次初始化各个组件
func (initializer *ApplicationInitializer) Initialize() *AppContext {
	initializer.initializeRedis()
	initializer.initializeMySQL()

	userStore := users.NewMySQLStore(initializer.mysqlDatabase)
	registry := initializer.createTokenRegistry(userStore)
	recordStore := initializer.createRecordStore()
	inboxStore := initializer.createInboxStore()
	statusStore := initializer.createStatusStore()
	idempotencyChecker := initializer.createIdempotencyChecker()

	dispatcher := initializer.createDispatcher(userStore, registry, recordStore, statusStore)

	mailer := email.NewMailer(initializer.configuration.Email)

	listEnqueuer := initializer.createEnqueuer(initializer.configuration.NSQ.ListEventsTopic)
	feedbackEnqueuer := initializer.createEnqueuer(initializer.configuration.NSQ.FeedbackTopic)

	return &AppContext{
		Config:           initializer.configuration,
		RedisClient:      initializer.redisClient,
		MySQL:            initializer.mysqlDatabase,
		Users:            userStore,
		Registry:         registry,
		Dispatcher:       dispatcher,
		RecordStore:      recordStore,
		InboxStore:       inboxStore,
		StatusStore:      statusStore,
		Idempotency:      idempotencyChecker,
		Mailer:           mailer,
		ListEnqueuer:     listEnqueuer,
		FeedbackEnqueuer: feedbackEnqueuer,
	}
}

// initializeRedis 初始化 Redis 客户端
func (initializer *ApplicationInitializer) initializeRedis() {
	initializer.redisClient = redis.NewClient(&redis.Options{
		Addr:     initializer.configuration.Storage.RedisAddr,
		Password: initializer.configuration.Storage.RedisPassword,
		DB:       initializer.configuration.Storage.RedisDB,
	})

	log.Println("[Initializer] Redis 客户端初始化完成")
}

// initializeMySQL 初始化 MySQL 连接
// 用户账户是注册与分发的存在性依据,连接失败直接终止启动
func (initializer *ApplicationInitializer) initializeMySQL() {
	mysqlDatabase, err := database.NewMySQLDB(initializer.configuration.Storage.MySQL)
	if err != nil {
		log.Fatalf("[Initializer] MySQL 连接失败: %v", err)
	}

	if err := mysqlDatabase.InitTables(); err != nil {
		log.Fatalf("[Initializer] 初始化表结构失败: %v", err)
	}

	initializer.mysqlDatabase = mysqlDatabase
	log.Println("[Initializer] MySQL 连接成功")
}

// createTokenRegistry 创建设备 token 注册表
func (initializer *ApplicationInitializer) createTokenRegistry(userStore *users.MySQLStore) push.TokenRegistry {
	return tokens.NewRedisRegistry(
		initializer.redisClient,
		userStore,
		initializer.configuration.Storage.Namespace,
	)
}

// createRecordStore 创建分发记录存储
func (initializer *ApplicationInitializer) createRecordStore() *recorder.RedisStore {
	return recorder.NewRedisStore(
		initializer.redisClient,
		initializer.configuration.Storage.Namespace,
		initializer.configuration.Storage.MaxKeepRecords,
		initializer.configuration.Storage.RecordTTL,
	)
}

// createInboxStore 创建通知信箱存储
func (initializer *ApplicationInitializer) createInboxStore() inbox.Store {
	return inbox.NewRedisStore(initializer.redisClient, inbox.Options{
		Namespace:  initializer.configuration.Storage.Namespace,
		MaxPerUser: initializer.configuration.Storage.InboxMaxPerUser,
		TTL:        initializer.configuration.Storage.InboxTTL,
	})
}

// createStatusStore 创建消息状态存储
func (initializer *ApplicationInitializer) createStatusStore() status.StatusStore {
	return status.NewRedisStatusStore(
		initializer.redisClient,
		initializer.configuration.Storage.StatusTTL,
	)
}

// createIdempotencyChecker 创建幂等检查器
func (initializer *ApplicationInitializer) createIdempotencyChecker() idempotency.Checker {
	return idempotency.NewRedisChecker(
		initializer.redisClient,
		initializer.configuration.Storage.Namespace,
	)
}

// createPushChannel 创建推送通道
// 开发环境使用日志桩,生产环境对接推送网关
func (initializer *ApplicationInitializer) createPushChannel() push.Channel {
	if initializer.configuration.Push.UseStub {
		log.Println("[Initializer] 使用日志桩推送通道")
		return webpush.NewStub()
	}

	log.Println("[Initializer] 使用推送网关通道")
	return webpush.NewClient(initializer.configuration.Push)
}

// createDispatcher 创建通知分发器
func (initializer *ApplicationInitializer) createDispatcher(
	userStore *users.MySQLStore,
	registry push.TokenRegistry,
	recordStore *recorder.RedisStore,
	statusStore status.StatusStore,
) *push.Dispatcher {
	dispatcher := push.NewDispatcher(
		userStore,
		registry,
		initializer.createPushChannel(),
		push.Options{
			PerTokenTimeout: initializer.configuration.Push.Timeout,
			MaxConcurrent:   initializer.configuration.Push.MaxConcurrent,
			PayloadImage:    initializer.configuration.Notify.ImagePath,
			DefaultLink:     initializer.configuration.Notify.DefaultLink,
		},
	)

	dispatcher.SetStore(recordStore, initializer.configuration.Storage.Namespace)
	dispatcher.SetStatusStore(statusStore)

	log.Println("[Initializer] 通知分发器创建完成")
	return dispatcher
}

// createEnqueuer 创建事件队列生产者
func (initializer *ApplicationInitializer) createEnqueuer(topic string) queue.Enqueuer {
	producer, err := queue.NewNSQProducer(initializer.configuration.NSQ.ProducerAddr, topic)
	if err != nil {
		log.Fatalf("[Initializer] 创建队列生产者失败 (topic=%s): %v", topic, err)
	}

	log.Printf("[Initializer] 队列生产者创建成功: %s", topic)
	return producer
}

//
// 外部调用接口
//

// InitAppContext 初始化应用上下文
func InitAppContext(configuration config.Config) *AppContext {
	initializer := NewApplicationInitializer(configuration)
	return initializer.Initialize()
}

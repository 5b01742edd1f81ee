package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认配置常量
const (
	// NSQ 队列默认配置
	DefaultListEventsTopic    = "list-updates"
	DefaultFeedbackTopic      = "feedback-events"
	DefaultNSQChannel         = "notify-workers"
	DefaultNSQMaxInFlight     = 128
	DefaultNSQConcurrency     = 8
	DefaultNSQMaxAttempts     = 5
	DefaultDLQTopicSuffix     = ".DLQ"

	// 应用默认配置
	DefaultHTTPAddress    = ":8080"
	DefaultRequestTimeout = 5 * time.Second
	DefaultIdempotencyTTL = 5 * time.Minute

	// 推送通道默认配置
	DefaultPushTimeout       = 5 * time.Second
	DefaultPushMaxConcurrent = 16
	DefaultNotifyImagePath   = "/images/placeholder-icon.png?v=2"
	DefaultNotifyLinkPath    = "/"

	// 通知内容默认配置
	// 正文超过该长度会被截断并追加省略号
	DefaultBodyMaxLength = 100

	// 存储默认配置
	DefaultRedisNamespace  = "lista"
	DefaultMaxKeepRecords  = 1_000_000
	DefaultRecordTTL       = 90 * 24 * time.Hour
	DefaultStatusTTL       = 24 * time.Hour
	DefaultInboxMaxPerUser = 500
	DefaultInboxTTL        = 90 * 24 * time.Hour
)

// Retry 重试配置
// 定义邮件等辅助通道发送失败时的重试策略
type Retry struct {
	MaxAttempts int           `yaml:"MaxAttempts"` // 最大重试次数
	Backoff     time.Duration `yaml:"Backoff"`     // 重试间隔时间
}

// PushChannel 推送通道配置
// 指向上游 Web Push 网关的 HTTP 接入参数
type PushChannel struct {
	GatewayURL    string        `yaml:"GatewayURL"`    // 推送网关地址
	APIKey        string        `yaml:"APIKey"`        // 网关鉴权密钥
	Timeout       time.Duration `yaml:"Timeout"`       // 单 token 发送超时
	MaxConcurrent int           `yaml:"MaxConcurrent"` // 单次分发的最大并发数
	UseStub       bool          `yaml:"UseStub"`       // 使用日志桩通道(开发环境)
}

// EmailProvider 邮件服务配置
// 包含 SMTP 连接、认证和发送参数
type EmailProvider struct {
	Enabled  bool          `yaml:"Enabled"`  // 是否启用邮件通知
	From     string        `yaml:"From"`     // 发件人邮箱地址
	FromName string        `yaml:"FromName"` // 发件人显示名称
	SMTPHost string        `yaml:"SMTPHost"` // SMTP 服务器主机名
	SMTPPort int           `yaml:"SMTPPort"` // SMTP 服务器端口
	Username string        `yaml:"Username"` // SMTP 认证用户名
	Password string        `yaml:"Password"` // SMTP 认证密码
	UseTLS   bool          `yaml:"UseTLS"`   // 是否启用 STARTTLS
	UseSSL   bool          `yaml:"UseSSL"`   // 是否使用 SSL 直连
	Timeout  time.Duration `yaml:"Timeout"`  // 发送超时时间
	Retry    Retry         `yaml:"Retry"`    // 重试策略
}

// Notify 通知内容策略配置
type Notify struct {
	BodyMaxLength int    `yaml:"BodyMaxLength"` // 正文最大长度(字符数)
	ImagePath     string `yaml:"ImagePath"`     // 通知图标路径
	DefaultLink   string `yaml:"DefaultLink"`   // 默认跳转路径
}

// NSQ 消息队列配置
// 变更事件(新增条目/新反馈)经由 NSQ 异步到达网关
type NSQ struct {
	ListEventsTopic             string   `yaml:"ListEventsTopic"`             // 清单变更事件主题
	FeedbackTopic               string   `yaml:"FeedbackTopic"`               // 反馈事件主题
	Channel                     string   `yaml:"Channel"`                     // 消费者通道
	NsqdTCPAddrs                []string `yaml:"NsqdTCPAddrs"`                // NSQD TCP 地址列表
	LookupdHTTPAddrs            []string `yaml:"LookupdHTTPAddrs"`            // Lookupd HTTP 地址列表
	MaxInFlight                 int      `yaml:"MaxInFlight"`                 // 最大并发消息数
	Concurrency                 int      `yaml:"Concurrency"`                 // 处理并发数
	ProducerAddr                string   `yaml:"ProducerAddr"`                // 生产者地址
	ConsumerEnabled             bool     `yaml:"ConsumerEnabled"`             // 是否启用消费
	DLQTopicSuffix              string   `yaml:"DLQTopicSuffix"`              // 死信队列主题后缀
	MaxConsumeAttemptsBeforeDLQ int      `yaml:"MaxConsumeAttemptsBeforeDLQ"` // 进入死信队列前最大尝试次数
}

// App 应用全局配置
type App struct {
	Addr           string        `yaml:"Addr"`           // HTTP 监听地址
	RequestTimeout time.Duration `yaml:"RequestTimeout"` // HTTP 请求超时
	IdempotencyTTL time.Duration `yaml:"IdempotencyTTL"` // 幂等键过期时间
}

// MySQLConfig MySQL 数据库连接配置
type MySQLConfig struct {
	DSN             string        `yaml:"DSN"`             // 数据源配置
	MaxOpenConns    int           `yaml:"MaxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int           `yaml:"MaxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `yaml:"ConnMaxLifetime"` // 连接最大生命周期
}

// Storage 存储配置
// Redis 保存 token 集合、分发记录、状态与收件箱,MySQL 保存用户账户
type Storage struct {
	RedisAddr       string        `yaml:"RedisAddr"`       // Redis 地址
	RedisPassword   string        `yaml:"RedisPassword"`   // Redis 密码
	RedisDB         int           `yaml:"RedisDB"`         // Redis 数据库编号
	Namespace       string        `yaml:"Namespace"`       // Redis 键前缀
	MaxKeepRecords  int64         `yaml:"MaxKeepRecords"`  // 最大保留分发记录数
	RecordTTL       time.Duration `yaml:"RecordTTL"`       // 分发记录过期时间
	StatusTTL       time.Duration `yaml:"StatusTTL"`       // 状态记录过期时间
	InboxMaxPerUser int64         `yaml:"InboxMaxPerUser"` // 单用户收件箱最大消息数
	InboxTTL        time.Duration `yaml:"InboxTTL"`        // 收件箱消息过期时间
	MySQL           MySQLConfig   `yaml:"MySQL"`           // MySQL 配置
}

// Config 应用完整配置
type Config struct {
	App     App           `yaml:"App"`
	Storage Storage       `yaml:"Storage"`
	NSQ     NSQ           `yaml:"NSQ"`
	Push    PushChannel   `yaml:"Push"`
	Email   EmailProvider `yaml:"Email"`
	Notify  Notify        `yaml:"Notify"`
}

// MustLoad 加载 YAML 配置文件
// 加载失败时直接 panic(用于应用启动阶段)
func MustLoad(configPath string) Config {
	fileContent, err := os.ReadFile(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read config file: %v", err))
	}

	var config Config
	if err := yaml.Unmarshal(fileContent, &config); err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	return config
}

// validate 校验配置并设置默认值
func (config *Config) validate() error {
	if err := config.validateAppConfig(); err != nil {
		return err
	}

	if err := config.validateNSQConfig(); err != nil {
		return err
	}

	if err := config.validateStorageConfig(); err != nil {
		return err
	}

	if err := config.validatePushConfig(); err != nil {
		return err
	}

	config.applyNotifyDefaults()

	return nil
}

// validateAppConfig 校验应用配置并设置默认值
func (config *Config) validateAppConfig() error {
	if config.App.Addr == "" {
		config.App.Addr = DefaultHTTPAddress
	}

	if config.App.RequestTimeout <= 0 {
		config.App.RequestTimeout = DefaultRequestTimeout
	}

	if config.App.IdempotencyTTL <= 0 {
		config.App.IdempotencyTTL = DefaultIdempotencyTTL
	}

	return nil
}

// validateNSQConfig 校验 NSQ 配置并设置默认值
func (config *Config) validateNSQConfig() error {
	if config.NSQ.ListEventsTopic == "" {
		config.NSQ.ListEventsTopic = DefaultListEventsTopic
	}

	if config.NSQ.FeedbackTopic == "" {
		config.NSQ.FeedbackTopic = DefaultFeedbackTopic
	}

	if config.NSQ.Channel == "" {
		config.NSQ.Channel = DefaultNSQChannel
	}

	if config.NSQ.MaxInFlight <= 0 {
		config.NSQ.MaxInFlight = DefaultNSQMaxInFlight
	}

	if config.NSQ.Concurrency <= 0 {
		config.NSQ.Concurrency = DefaultNSQConcurrency
	}

	if config.NSQ.MaxConsumeAttemptsBeforeDLQ <= 0 {
		config.NSQ.MaxConsumeAttemptsBeforeDLQ = DefaultNSQMaxAttempts
	}

	if config.NSQ.DLQTopicSuffix == "" {
		config.NSQ.DLQTopicSuffix = DefaultDLQTopicSuffix
	}

	return nil
}

// validateStorageConfig 校验存储配置并设置默认值
func (config *Config) validateStorageConfig() error {
	if config.Storage.Namespace == "" {
		config.Storage.Namespace = DefaultRedisNamespace
	}

	if config.Storage.MaxKeepRecords <= 0 {
		config.Storage.MaxKeepRecords = DefaultMaxKeepRecords
	}

	if config.Storage.RecordTTL <= 0 {
		config.Storage.RecordTTL = DefaultRecordTTL
	}

	if config.Storage.StatusTTL <= 0 {
		config.Storage.StatusTTL = DefaultStatusTTL
	}

	if config.Storage.InboxMaxPerUser <= 0 {
		config.Storage.InboxMaxPerUser = DefaultInboxMaxPerUser
	}

	if config.Storage.InboxTTL <= 0 {
		config.Storage.InboxTTL = DefaultInboxTTL
	}

	return nil
}

// validatePushConfig 校验推送通道配置并设置默认值
// 未配置网关地址且未启用桩通道时视为配置错误
func (config *Config) validatePushConfig() error {
	if config.Push.Timeout <= 0 {
		config.Push.Timeout = DefaultPushTimeout
	}

	if config.Push.MaxConcurrent <= 0 {
		config.Push.MaxConcurrent = DefaultPushMaxConcurrent
	}

	if config.Push.GatewayURL == "" && !config.Push.UseStub {
		return fmt.Errorf("push gateway url is required when stub channel is disabled")
	}

	return nil
}

// applyNotifyDefaults 设置通知内容策略默认值
func (config *Config) applyNotifyDefaults() {
	if config.Notify.BodyMaxLength <= 0 {
		config.Notify.BodyMaxLength = DefaultBodyMaxLength
	}

	if config.Notify.ImagePath == "" {
		config.Notify.ImagePath = DefaultNotifyImagePath
	}

	if config.Notify.DefaultLink == "" {
		config.Notify.DefaultLink = DefaultNotifyLinkPath
	}
}

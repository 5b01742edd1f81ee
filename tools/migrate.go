package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/AvertonDias/lista-limpeza-facil/internal/config"
	"github.com/AvertonDias/lista-limpeza-facil/internal/database"
	"github.com/AvertonDias/lista-limpeza-facil/internal/users"

	"github.com/redis/go-redis/v9"
)

var (
	configFile = flag.String("config", "etc/app.yaml", "配置文件路径")
	mode       = flag.String("mode", "import", "操作模式: import|verify|cleanup")
	usersFile  = flag.String("users", "users.json", "import 模式的用户数据文件")
	dryRun     = flag.Bool("dry-run", false, "仅预览，不执行实际操作")
)

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	// 连接 Redis
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.RedisAddr,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
	})
	defer rc.Close()

	// 连接 MySQL
	mysqlDB, err := database.NewMySQLDB(cfg.Storage.MySQL)
	if err != nil {
		log.Fatalf("MySQL连接失败: %v", err)
	}
	defer mysqlDB.Close()

	// 初始化表
	if err := mysqlDB.InitTables(); err != nil {
		log.Fatalf("表初始化失败: %v", err)
	}

	migrator := &DataMigrator{
		redis:  rc,
		users:  users.NewMySQLStore(mysqlDB),
		cfg:    &cfg,
		dryRun: *dryRun,
	}

	switch *mode {
	case "import":
		migrator.ImportUsers(*usersFile)
	case "verify":
		migrator.VerifyTokenSets()
	case "cleanup":
		migrator.CleanupOrphanTokenSets()
	default:
		log.Fatalf("未知模式: %s", *mode)
	}
}

type DataMigrator struct {
	redis  *redis.Client
	users  *users.MySQLStore
	cfg    *config.Config
	dryRun bool
}

// ImportUsers 从 JSON 文件导入用户账户
// 文件格式为用户对象数组,已存在的账户会被更新
func (m *DataMigrator) ImportUsers(path string) {
	ctx := context.Background()

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取用户文件失败: %v", err)
	}

	var records []users.User
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Fatalf("解析用户文件失败: %v", err)
	}

	log.Printf("开始导入 %d 个用户账户...", len(records))

	imported := 0
	for _, record := range records {
		if record.ID == "" {
			log.Printf("跳过缺少 ID 的记录")
			continue
		}

		if !m.dryRun {
			if err := m.users.Create(ctx, &record); err != nil {
				log.Printf("导入用户 %s 失败: %v", record.ID, err)
				continue
			}
		}

		imported++
		if imported%100 == 0 {
			log.Printf("已导入 %d/%d 用户", imported, len(records))
		}
	}

	log.Printf("导入完成: 总数 %d, 成功 %d", len(records), imported)
}

// VerifyTokenSets 核对 token 集合与用户账户的一致性
// 找出没有对应账户的孤儿 token 集合
func (m *DataMigrator) VerifyTokenSets() {
	ctx := context.Background()

	log.Printf("开始核对 token 集合...")

	keys, err := m.scanTokenKeys(ctx)
	if err != nil {
		log.Fatalf("扫描 token 集合失败: %v", err)
	}

	log.Printf("找到 %d 个 token 集合", len(keys))

	orphans := 0
	for _, key := range keys {
		userID := m.extractUserIDFromKey(key)
		if userID == "" {
			log.Printf("无法提取用户ID: %s", key)
			continue
		}

		exists, err := m.users.Exists(ctx, userID)
		if err != nil {
			log.Printf("检查用户 %s 失败: %v", userID, err)
			continue
		}

		if !exists {
			orphans++
			count, _ := m.redis.SCard(ctx, key).Result()
			log.Printf("孤儿 token 集合: user=%s tokens=%d", userID, count)
		}
	}

	if orphans == 0 {
		log.Printf("核对通过: 所有 token 集合都有对应账户")
	} else {
		log.Printf("发现 %d 个孤儿 token 集合, 可使用 cleanup 模式清理", orphans)
	}
}

// CleanupOrphanTokenSets 删除没有对应账户的 token 集合
func (m *DataMigrator) CleanupOrphanTokenSets() {
	ctx := context.Background()

	log.Printf("开始清理孤儿 token 集合...")

	keys, err := m.scanTokenKeys(ctx)
	if err != nil {
		log.Fatalf("扫描 token 集合失败: %v", err)
	}

	deleted := 0
	for _, key := range keys {
		userID := m.extractUserIDFromKey(key)
		if userID == "" {
			continue
		}

		exists, err := m.users.Exists(ctx, userID)
		if err != nil || exists {
			continue
		}

		if !m.dryRun {
			if err := m.redis.Del(ctx, key).Err(); err != nil {
				log.Printf("删除 token 集合失败: %v", err)
				continue
			}
		}
		deleted++
	}

	log.Printf("清理完成: 删除了 %d 个孤儿 token 集合", deleted)
}

// 辅助函数

func (m *DataMigrator) scanTokenKeys(ctx context.Context) ([]string, error) {
	pattern := fmt.Sprintf("%s:tokens:*", m.cfg.Storage.Namespace)

	var keys []string
	var cursor uint64
	for {
		batch, next, err := m.redis.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (m *DataMigrator) extractUserIDFromKey(key string) string {
	// 从 "namespace:tokens:userID" 中提取 userID
	parts := strings.Split(key, ":")
	if len(parts) >= 3 {
		return parts[len(parts)-1]
	}
	return ""
}

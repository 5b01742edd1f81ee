package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/AvertonDias/lista-limpeza-facil/internal/config"

	_ "github.com/go-sql-driver/mysql"
)

// 表名常量
const (
	TableUsers = "users"
)

// SQL 建表语句常量
// 使用 InnoDB 引擎支持事务,utf8mb4 支持完整 Unicode 字符集
const (
	// createUsersTableSQL 用户账户表
	// 用户档案由认证服务创建;本服务只做存在性校验和取件人信息查询。
	// 设备 token 集合保存在 Redis,不在这张表里。
	createUsersTableSQL = `
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(128) PRIMARY KEY COMMENT '用户唯一标识(认证服务分配)',
			email VARCHAR(255) COMMENT '邮箱地址,用于反馈邮件通知',
			display_name VARCHAR(255) COMMENT '显示名称',
			created_at BIGINT NOT NULL COMMENT '创建时间戳',
			updated_at BIGINT DEFAULT 0 COMMENT '更新时间戳',
			INDEX idx_email (email),
			INDEX idx_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
		COMMENT='用户账户表'
	`
)

// MySQLDB MySQL 数据库连接管理器
// 封装连接池和表初始化逻辑
type MySQLDB struct {
	*sql.DB
}

// NewMySQLDB 创建 MySQL 数据库连接
// 自动配置连接池参数并测试连接可用性
func NewMySQLDB(mysqlConfig config.MySQLConfig) (*MySQLDB, error) {
	database, err := sql.Open("mysql", mysqlConfig.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	configureConnectionPool(database, mysqlConfig)

	if err := testConnection(database); err != nil {
		database.Close()
		return nil, err
	}

	log.Printf("[MYSQL] 数据库连接成功")
	return &MySQLDB{DB: database}, nil
}

// configureConnectionPool 配置数据库连接池参数
// 合理的连接池配置可以提高并发性能和资源利用率
func configureConnectionPool(database *sql.DB, mysqlConfig config.MySQLConfig) {
	database.SetMaxOpenConns(mysqlConfig.MaxOpenConns)
	database.SetMaxIdleConns(mysqlConfig.MaxIdleConns)
	database.SetConnMaxLifetime(mysqlConfig.ConnMaxLifetime)
}

// testConnection 测试数据库连接是否可用
func testConnection(database *sql.DB) error {
	if err := database.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// InitTables 初始化数据库表结构
// 幂等操作,多次执行不会产生副作用
func (database *MySQLDB) InitTables() error {
	if err := database.createAllTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MYSQL] 数据库表初始化完成")
	return nil
}

// createAllTables 创建所有业务表
// 使用 IF NOT EXISTS 确保表已存在时不会报错
func (database *MySQLDB) createAllTables() error {
	tables := []tableDefinition{
		{name: TableUsers, sql: createUsersTableSQL},
	}

	for _, table := range tables {
		if err := database.createTable(table); err != nil {
			return err
		}
	}

	return nil
}

// tableDefinition 表定义结构
type tableDefinition struct {
	name string
	sql  string
}

// createTable 创建单个数据表
func (database *MySQLDB) createTable(table tableDefinition) error {
	if _, err := database.Exec(table.sql); err != nil {
		log.Printf("[MYSQL] 创建表 %s 失败: %v", table.name, err)
		return fmt.Errorf("failed to create table %s: %w", table.name, err)
	}
	return nil
}

// Close 关闭数据库连接
// 释放所有连接池资源
func (database *MySQLDB) Close() error {
	if err := database.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

package repository

import (
	"fmt"

	"github.com/user/cinechat/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接并确保表结构存在
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate 建表（create-if-absent，可重复执行）
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Movie{}, &model.Actor{}, &model.MovieActor{}); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}
	return nil
}

// Repositories 仓库集合
type Repositories struct {
	DB    *gorm.DB
	Movie *MovieRepository
	Actor *ActorRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:    db,
		Movie: NewMovieRepository(db),
		Actor: NewActorRepository(db),
	}
}

package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/user/cinechat/internal/model"
	"gorm.io/gorm"
)

type ActorRepository struct {
	db *gorm.DB
}

func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// FindByID 根据内部 ID 查找演员
func (r *ActorRepository) FindByID(ctx context.Context, id int) (*model.Actor, error) {
	var actor model.Actor
	err := r.db.WithContext(ctx).First(&actor, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

// FindByTMDBID 根据 TMDB ID 查找演员
func (r *ActorRepository) FindByTMDBID(ctx context.Context, tmdbID int) (*model.Actor, error) {
	var actor model.Actor
	err := r.db.WithContext(ctx).First(&actor, "tmdb_id = ?", tmdbID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

// SearchByName 按姓名模糊搜索（不区分大小写的包含匹配）
func (r *ActorRepository) SearchByName(ctx context.Context, name string, limit int) ([]model.Actor, error) {
	if limit <= 0 {
		limit = 10
	}
	var actors []model.Actor
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%").
		Limit(limit).
		Find(&actors).Error
	return actors, err
}

// InMovie 返回某电影的演员（通过关联表 JOIN，按入库顺序）
func (r *ActorRepository) InMovie(ctx context.Context, movieID int, limit int) ([]model.Actor, error) {
	if limit <= 0 {
		limit = 10
	}
	var actors []model.Actor
	err := r.db.WithContext(ctx).
		Joins("JOIN movie_actors ON movie_actors.actor_id = actors.id").
		Where("movie_actors.movie_id = ?", movieID).
		Order("actors.id").
		Limit(limit).
		Find(&actors).Error
	return actors, err
}

// List 分页返回全部演员
func (r *ActorRepository) List(ctx context.Context, offset, limit int) ([]model.Actor, error) {
	if limit <= 0 {
		limit = 100
	}
	var actors []model.Actor
	err := r.db.WithContext(ctx).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&actors).Error
	return actors, err
}

// Count 演员总数
func (r *ActorRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Actor{}).Count(&count).Error
	return count, err
}

// Create 创建演员，返回时填充内部 ID
func (r *ActorRepository) Create(ctx context.Context, actor *model.Actor) error {
	return r.db.WithContext(ctx).Create(actor).Error
}

// WithTx 返回绑定到事务的仓库实例
func (r *ActorRepository) WithTx(tx *gorm.DB) *ActorRepository {
	return &ActorRepository{db: tx}
}

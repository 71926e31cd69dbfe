package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/user/cinechat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindByID 根据内部 ID 查找电影
func (r *MovieRepository) FindByID(ctx context.Context, id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).First(&movie, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByTMDBID 根据 TMDB ID 查找电影（去重用的自然键）
func (r *MovieRepository) FindByTMDBID(ctx context.Context, tmdbID int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).First(&movie, "tmdb_id = ?", tmdbID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// SearchByTitle 按标题模糊搜索（不区分大小写的包含匹配）
func (r *MovieRepository) SearchByTitle(ctx context.Context, title string, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// TopRated 按平均评分降序返回电影
func (r *MovieRepository) TopRated(ctx context.Context, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Order("vote_average DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// MostPopular 按热度降序返回电影
func (r *MovieRepository) MostPopular(ctx context.Context, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Order("popularity DESC").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// ByYear 返回指定年份上映的电影，1月1日和12月31日均含边界
func (r *MovieRepository) ByYear(ctx context.Context, year int, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)

	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Where("release_date >= ? AND release_date <= ?", start, end).
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// ByActor 返回某演员参演的电影（通过关联表 JOIN，按入库顺序）
func (r *MovieRepository) ByActor(ctx context.Context, actorID int, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Joins("JOIN movie_actors ON movie_actors.movie_id = movies.id").
		Where("movie_actors.actor_id = ?", actorID).
		Order("movies.id").
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// List 分页返回全部电影
func (r *MovieRepository) List(ctx context.Context, offset, limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 100
	}
	var movies []model.Movie
	err := r.db.WithContext(ctx).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&movies).Error
	return movies, err
}

// Count 电影总数
func (r *MovieRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Movie{}).Count(&count).Error
	return count, err
}

// Create 创建电影，返回时填充内部 ID
func (r *MovieRepository) Create(ctx context.Context, movie *model.Movie) error {
	return r.db.WithContext(ctx).Create(movie).Error
}

// AttachActor 建立电影-演员关联，已存在时为空操作
func (r *MovieRepository) AttachActor(ctx context.Context, movieID, actorID int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.MovieActor{MovieID: movieID, ActorID: actorID}).Error
}

// WithTx 返回绑定到事务的仓库实例
func (r *MovieRepository) WithTx(tx *gorm.DB) *MovieRepository {
	return &MovieRepository{db: tx}
}

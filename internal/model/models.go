package model

import (
	"time"
)

// Movie 电影模型（TMDB 信息），入库后不再更新
type Movie struct {
	ID           int        `json:"id" gorm:"primaryKey"`
	TMDBID       int        `json:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex;not null"`
	Title        string     `json:"title" gorm:"size:255;index"`
	Overview     string     `json:"overview" gorm:"type:text"`
	ReleaseDate  *time.Time `json:"release_date" gorm:"type:date"`
	VoteAverage  *float64   `json:"vote_average"`
	VoteCount    *int       `json:"vote_count"`
	PosterPath   *string    `json:"poster_path" gorm:"size:255"`
	BackdropPath *string    `json:"backdrop_path" gorm:"size:255"`
	Popularity   *float64   `json:"popularity"`
}

// TableName 指定表名
func (Movie) TableName() string {
	return "movies"
}

// Actor 演员模型（TMDB 信息）
type Actor struct {
	ID           int        `json:"id" gorm:"primaryKey"`
	TMDBID       int        `json:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"size:255;index"`
	ProfilePath  *string    `json:"profile_path" gorm:"size:255"`
	Popularity   *float64   `json:"popularity"`
	Biography    *string    `json:"biography" gorm:"type:text"`
	Birthday     *time.Time `json:"birthday" gorm:"type:date"`
	Deathday     *time.Time `json:"deathday" gorm:"type:date"`
	PlaceOfBirth *string    `json:"place_of_birth" gorm:"size:255"`
}

// TableName 指定表名
func (Actor) TableName() string {
	return "actors"
}

// MovieActor 电影-演员多对多关联表
// 不走 GORM 的 many2many 反向引用，所有遍历都通过显式 JOIN 查询
type MovieActor struct {
	MovieID int `json:"movie_id" gorm:"primaryKey;autoIncrement:false"`
	ActorID int `json:"actor_id" gorm:"primaryKey;autoIncrement:false"`
}

// TableName 指定表名
func (MovieActor) TableName() string {
	return "movie_actors"
}

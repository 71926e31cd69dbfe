package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/user/cinechat/internal/model"
	"github.com/user/cinechat/internal/repository"
	"gorm.io/gorm"
)

// topCastSize 每部电影入库的演员数上限
const topCastSize = 10

// IngestService 数据摄取管道：TMDB -> Postgres
type IngestService struct {
	tmdb  *TMDBClient
	repos *repository.Repositories

	// 可注入，测试用
	sleep         func(time.Duration)
	stdin         io.Reader
	isInteractive func() bool
}

// NewIngestService 创建摄取服务
func NewIngestService(tmdb *TMDBClient, repos *repository.Repositories) *IngestService {
	return &IngestService{
		tmdb:  tmdb,
		repos: repos,
		sleep: time.Sleep,
		stdin: os.Stdin,
		isInteractive: func() bool {
			stat, err := os.Stdin.Stat()
			if err != nil {
				return false
			}
			return stat.Mode()&os.ModeCharDevice != 0
		},
	}
}

// Run 执行一次摄取：抓取热门电影页，逐部入库（含前 10 位演员），逐部提交
//
// 摄取本身是幂等的（按 TMDB ID 去重跳过），force 只是防止误触发重复抓取的安全闸。
func (s *IngestService) Run(ctx context.Context, force bool) error {
	count, err := s.repos.Movie.Count(ctx)
	if err != nil {
		return fmt.Errorf("查询电影数量失败: %w", err)
	}

	if count > 0 && !force {
		log.Printf("[INGEST] 数据库已有 %d 部电影", count)
		if s.isInteractive() {
			fmt.Print("Database already contains data. Continue and potentially add more? (y/n): ")
			reader := bufio.NewReader(s.stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				log.Println("[INGEST] 已取消")
				return nil
			}
		} else {
			return fmt.Errorf("数据库已有数据且当前为非交互环境，如需继续请加 --force 参数")
		}
	}

	log.Println("[INGEST] 开始抓取 TMDB 热门电影...")
	popular, err := s.tmdb.PopularMovies(ctx, 1, 0)
	if err != nil {
		return fmt.Errorf("抓取热门电影失败: %w", err)
	}
	log.Printf("[INGEST] 共 %d 部热门电影待处理", len(popular))

	for i, summary := range popular {
		log.Printf("[INGEST] 处理电影 %d/%d: %s", i+1, len(popular), summary.Title)

		// 已存在则整部跳过，不做字段刷新
		existing, err := s.repos.Movie.FindByTMDBID(ctx, summary.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			log.Printf("[INGEST] 电影已存在，跳过: %s (TMDB ID: %d)", summary.Title, summary.ID)
			continue
		}

		if err := s.ingestOne(ctx, summary.ID); err != nil {
			return fmt.Errorf("处理电影失败 %q: %w", summary.Title, err)
		}

		// 礼貌性延迟，避免压到上游限流
		s.sleep(500 * time.Millisecond)
	}

	log.Println("[INGEST] 摄取完成")
	return nil
}

// ingestOne 入库一部电影及其前 10 位演员，整体在一个事务内提交
func (s *IngestService) ingestOne(ctx context.Context, tmdbID int) error {
	details, err := s.tmdb.GetMovieDetails(ctx, tmdbID)
	if err != nil {
		return err
	}
	credits, err := s.tmdb.GetMovieCredits(ctx, tmdbID)
	if err != nil {
		return err
	}

	return s.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		movieRepo := s.repos.Movie.WithTx(tx)

		movie := &model.Movie{
			TMDBID:       details.ID,
			Title:        details.Title,
			Overview:     details.Overview,
			ReleaseDate:  parseDate(details.ReleaseDate),
			VoteAverage:  &details.VoteAverage,
			VoteCount:    &details.VoteCount,
			PosterPath:   details.PosterPath,
			BackdropPath: details.BackdropPath,
			Popularity:   &details.Popularity,
		}
		if err := movieRepo.Create(ctx, movie); err != nil {
			return err
		}

		cast := credits.Cast
		if len(cast) > topCastSize {
			cast = cast[:topCastSize]
		}

		for _, member := range cast {
			// 单个演员失败只影响自己，后续演员继续处理；
			// 嵌套事务（SAVEPOINT）保证 SQL 错误也不会污染整部电影的提交
			err := tx.Transaction(func(mtx *gorm.DB) error {
				return s.ingestCastMember(ctx, movieRepo.WithTx(mtx), s.repos.Actor.WithTx(mtx), movie.ID, member)
			})
			if err != nil {
				log.Printf("[INGEST] 演员处理失败，跳过: %s (TMDB ID: %d): %v", member.Name, member.ID, err)
			}
		}

		return nil
	})
}

// ingestCastMember 确保演员存在后建立与电影的关联
func (s *IngestService) ingestCastMember(ctx context.Context, movieRepo *repository.MovieRepository, actorRepo *repository.ActorRepository, movieID int, member CastMember) error {
	actor, err := actorRepo.FindByTMDBID(ctx, member.ID)
	if err != nil {
		return err
	}

	if actor == nil {
		details, err := s.tmdb.GetPersonDetails(ctx, member.ID)
		if err != nil {
			return err
		}

		actor = &model.Actor{
			TMDBID:       details.ID,
			Name:         details.Name,
			ProfilePath:  details.ProfilePath,
			Popularity:   &details.Popularity,
			Biography:    details.Biography,
			Birthday:     parseDatePtr(details.Birthday),
			Deathday:     parseDatePtr(details.Deathday),
			PlaceOfBirth: details.PlaceOfBirth,
		}
		if err := actorRepo.Create(ctx, actor); err != nil {
			return err
		}
	}

	return movieRepo.AttachActor(ctx, movieID, actor.ID)
}

// parseDate 解析 ISO 日期（YYYY-MM-DD），解析失败视为缺失而非错误
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

func parseDatePtr(value *string) *time.Time {
	if value == nil {
		return nil
	}
	return parseDate(*value)
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/tools"
	"github.com/user/cinechat/internal/model"
	"github.com/user/cinechat/internal/repository"
)

// queryTool 把一个预置查询适配成 agent 可调用的工具
//
// run 返回的错误在 Call 里转成文本结果，绝不向上传播，
// 单个工具调用失败不能打断 agent 的推理循环。
type queryTool struct {
	name        string
	description string
	run         func(ctx context.Context, input string) (string, error)
}

var _ tools.Tool = queryTool{}

func (t queryTool) Name() string {
	return t.name
}

func (t queryTool) Description() string {
	return t.description
}

func (t queryTool) Call(ctx context.Context, input string) (string, error) {
	out, err := t.run(ctx, strings.TrimSpace(input))
	if err != nil {
		return fmt.Sprintf("Error executing query: %s", err), nil
	}
	return out, nil
}

// NewQueryTools 构建全部预置查询工具
func NewQueryTools(repos *repository.Repositories) []tools.Tool {
	return []tools.Tool{
		queryTool{
			name:        "search_movies_by_title",
			description: "Search for movies by title (case-insensitive substring match). Input: the title text to search for.",
			run: func(ctx context.Context, input string) (string, error) {
				movies, err := repos.Movie.SearchByTitle(ctx, input, 10)
				if err != nil {
					return "", err
				}
				return marshalMovies(movies)
			},
		},
		queryTool{
			name:        "search_actors_by_name",
			description: "Search for actors by name (case-insensitive substring match). Input: the name text to search for.",
			run: func(ctx context.Context, input string) (string, error) {
				actors, err := repos.Actor.SearchByName(ctx, input, 10)
				if err != nil {
					return "", err
				}
				return marshalActors(actors)
			},
		},
		queryTool{
			name:        "get_top_rated_movies",
			description: "Get top-rated movies ordered by vote average. Input: an optional result limit as a number (default 10).",
			run: func(ctx context.Context, input string) (string, error) {
				limit, err := parseLimit(input, 10)
				if err != nil {
					return "", err
				}
				movies, err := repos.Movie.TopRated(ctx, limit)
				if err != nil {
					return "", err
				}
				return marshalMovies(movies)
			},
		},
		queryTool{
			name:        "get_popular_movies",
			description: "Get the most popular movies ordered by popularity score. Input: an optional result limit as a number (default 10).",
			run: func(ctx context.Context, input string) (string, error) {
				limit, err := parseLimit(input, 10)
				if err != nil {
					return "", err
				}
				movies, err := repos.Movie.MostPopular(ctx, limit)
				if err != nil {
					return "", err
				}
				return marshalMovies(movies)
			},
		},
		queryTool{
			name:        "get_movies_by_year",
			description: "Get movies released in a specific calendar year. Input: the year as a number, optionally followed by a comma and a result limit, e.g. \"2022\" or \"2022, 5\".",
			run: func(ctx context.Context, input string) (string, error) {
				year, limit, err := parseIDAndLimit(input, 10)
				if err != nil {
					return "", err
				}
				movies, err := repos.Movie.ByYear(ctx, year, limit)
				if err != nil {
					return "", err
				}
				return marshalMovies(movies)
			},
		},
		queryTool{
			name:        "get_actors_in_movie",
			description: "Get actors who appeared in a specific movie. Input: the internal movie id as a number, optionally followed by a comma and a result limit, e.g. \"3\" or \"3, 5\".",
			run: func(ctx context.Context, input string) (string, error) {
				movieID, limit, err := parseIDAndLimit(input, 10)
				if err != nil {
					return "", err
				}
				actors, err := repos.Actor.InMovie(ctx, movieID, limit)
				if err != nil {
					return "", err
				}
				return marshalActors(actors)
			},
		},
		queryTool{
			name:        "get_movies_by_actor",
			description: "Get movies a specific actor appeared in. Input: the internal actor id as a number, optionally followed by a comma and a result limit, e.g. \"7\" or \"7, 5\".",
			run: func(ctx context.Context, input string) (string, error) {
				actorID, limit, err := parseIDAndLimit(input, 10)
				if err != nil {
					return "", err
				}
				movies, err := repos.Movie.ByActor(ctx, actorID, limit)
				if err != nil {
					return "", err
				}
				return marshalMovies(movies)
			},
		},
	}
}

// movieDoc 序列化电影记录：只枚举持久化字段，不带关联字段，避免递归展开
func movieDoc(m model.Movie) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"tmdb_id":       m.TMDBID,
		"title":         m.Title,
		"overview":      m.Overview,
		"release_date":  formatDate(m.ReleaseDate),
		"vote_average":  m.VoteAverage,
		"vote_count":    m.VoteCount,
		"poster_path":   m.PosterPath,
		"backdrop_path": m.BackdropPath,
		"popularity":    m.Popularity,
	}
}

// actorDoc 序列化演员记录
func actorDoc(a model.Actor) map[string]any {
	return map[string]any{
		"id":             a.ID,
		"tmdb_id":        a.TMDBID,
		"name":           a.Name,
		"profile_path":   a.ProfilePath,
		"popularity":     a.Popularity,
		"biography":      a.Biography,
		"birthday":       formatDate(a.Birthday),
		"deathday":       formatDate(a.Deathday),
		"place_of_birth": a.PlaceOfBirth,
	}
}

func marshalMovies(movies []model.Movie) (string, error) {
	docs := make([]map[string]any, 0, len(movies))
	for _, m := range movies {
		docs = append(docs, movieDoc(m))
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func marshalActors(actors []model.Actor) (string, error) {
	docs := make([]map[string]any, 0, len(actors))
	for _, a := range actors {
		docs = append(docs, actorDoc(a))
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// formatDate 日期按字符串表示序列化（非 JSON 原生类型）
func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// parseLimit 解析可选的条数参数
func parseLimit(input string, defaultLimit int) (int, error) {
	if input == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: expected a number", input)
	}
	return limit, nil
}

// parseIDAndLimit 解析 "id[, limit]" 形式的输入
func parseIDAndLimit(input string, defaultLimit int) (int, int, error) {
	parts := strings.SplitN(input, ",", 2)
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid argument %q: expected a number", parts[0])
	}
	limit := defaultLimit
	if len(parts) == 2 {
		limit, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid limit %q: expected a number", parts[1])
		}
	}
	return id, limit, nil
}

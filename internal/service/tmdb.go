package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/user/cinechat/internal/utils"
	"golang.org/x/sync/singleflight"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// maxAttempts 非 429 错误的总尝试次数
const maxAttempts = 3

// TMDBClient TMDB API 客户端，带限流重试和响应缓存
type TMDBClient struct {
	// BaseURL 可在测试中指向 httptest 服务
	BaseURL string

	token        string
	httpClient   *http.Client
	group        singleflight.Group
	movieSearch  *utils.SearchCache[[]MovieSummary]
	peopleSearch *utils.SearchCache[[]PersonSummary]

	// sleep 可注入，测试时用于记录等待时长
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTMDBClient 创建 TMDB 客户端
func NewTMDBClient(token string) *TMDBClient {
	return &TMDBClient{
		BaseURL: tmdbBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		movieSearch:  utils.NewSearchCache[[]MovieSummary](1000, time.Hour),
		peopleSearch: utils.NewSearchCache[[]PersonSummary](1000, time.Hour),
		sleep:        sleepContext,
	}
}

// sleepContext 可被 ctx 打断的等待，进程收到终止信号时限流重试不再死等
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// request 发送请求并返回响应体
//
// 429 按 Retry-After 等待后无限重试；其他非 200 状态最多尝试 3 次，
// 退避时间从 1 秒起指数增长；最终失败时把上游 HTTP 错误返回给调用方。
func (c *TMDBClient) request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.BaseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	attempt := 0
	backoff := time.Second

	for {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json;charset=utf-8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("请求 TMDB 失败: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("读取响应失败: %w", err)
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			// 命中限流，按 Retry-After 等待后重试，不计入尝试次数
			retryAfter := time.Second
			if v := resp.Header.Get("Retry-After"); v != "" {
				if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
			resp.Body.Close()
			log.Printf("[TMDB] 命中限流，等待 %s 后重试: %s", retryAfter, endpoint)
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, fmt.Errorf("等待重试被取消: %w", err)
			}

		default:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			attempt++
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("TMDB 请求失败，状态码 %d: %s", resp.StatusCode, body)
			}
			log.Printf("[TMDB] 请求失败（状态码 %d），%s 后重试: %s", resp.StatusCode, backoff, endpoint)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("等待重试被取消: %w", err)
			}
			backoff *= 2
		}
	}
}

// MovieSummary 热门/搜索列表里的电影条目
type MovieSummary struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	PosterPath  *string `json:"poster_path"`
	Popularity  float64 `json:"popularity"`
}

// MovieDetails 电影详情
type MovieDetails struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
}

// CastMember 演职员表里的演员条目
type CastMember struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// MovieCredits 电影演职员表
type MovieCredits struct {
	ID   int          `json:"id"`
	Cast []CastMember `json:"cast"`
}

// PersonDetails 演员详情
type PersonDetails struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	ProfilePath  *string `json:"profile_path"`
	Popularity   float64 `json:"popularity"`
	Biography    *string `json:"biography"`
	Birthday     *string `json:"birthday"`
	Deathday     *string `json:"deathday"`
	PlaceOfBirth *string `json:"place_of_birth"`
}

// PersonSummary 搜索列表里的演员条目
type PersonSummary struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	ProfilePath *string `json:"profile_path"`
	Popularity  float64 `json:"popularity"`
}

type popularResponse struct {
	Page    int            `json:"page"`
	Results []MovieSummary `json:"results"`
}

type peopleSearchResponse struct {
	Page    int             `json:"page"`
	Results []PersonSummary `json:"results"`
}

// PopularMovies 获取热门电影列表，limit > 0 时截断返回条数
func (c *TMDBClient) PopularMovies(ctx context.Context, page, limit int) ([]MovieSummary, error) {
	if page <= 0 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("language", "en-US")

	body, err := c.request(ctx, "movie/popular", params)
	if err != nil {
		return nil, err
	}

	var result popularResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析热门电影响应失败: %w", err)
	}

	if limit > 0 && len(result.Results) > limit {
		return result.Results[:limit], nil
	}
	return result.Results, nil
}

// GetMovieDetails 获取电影详情（附带视频/剧照子资源）
func (c *TMDBClient) GetMovieDetails(ctx context.Context, movieID int) (*MovieDetails, error) {
	key := fmt.Sprintf("tmdb:movie:%d", movieID)
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(*MovieDetails), nil
	}

	// 使用 singleflight 避免并发重复抓取
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		params := url.Values{}
		params.Set("language", "en-US")
		params.Set("append_to_response", "videos,images")

		body, err := c.request(ctx, fmt.Sprintf("movie/%d", movieID), params)
		if err != nil {
			return nil, err
		}

		var details MovieDetails
		if err := json.Unmarshal(body, &details); err != nil {
			return nil, fmt.Errorf("解析电影详情响应失败: %w", err)
		}
		utils.CacheSet(key, &details, 30*time.Minute)
		return &details, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*MovieDetails), nil
}

// GetMovieCredits 获取电影演职员表
func (c *TMDBClient) GetMovieCredits(ctx context.Context, movieID int) (*MovieCredits, error) {
	body, err := c.request(ctx, fmt.Sprintf("movie/%d/credits", movieID), nil)
	if err != nil {
		return nil, err
	}

	var credits MovieCredits
	if err := json.Unmarshal(body, &credits); err != nil {
		return nil, fmt.Errorf("解析演职员表响应失败: %w", err)
	}
	return &credits, nil
}

// GetPersonDetails 获取演员详情（附带完整参演记录）
func (c *TMDBClient) GetPersonDetails(ctx context.Context, personID int) (*PersonDetails, error) {
	key := fmt.Sprintf("tmdb:person:%d", personID)
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(*PersonDetails), nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		params := url.Values{}
		params.Set("language", "en-US")
		params.Set("append_to_response", "movie_credits")

		body, err := c.request(ctx, fmt.Sprintf("person/%d", personID), params)
		if err != nil {
			return nil, err
		}

		var details PersonDetails
		if err := json.Unmarshal(body, &details); err != nil {
			return nil, fmt.Errorf("解析演员详情响应失败: %w", err)
		}
		utils.CacheSet(key, &details, 30*time.Minute)
		return &details, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*PersonDetails), nil
}

// SearchMovies 按标题搜索电影
func (c *TMDBClient) SearchMovies(ctx context.Context, query string) ([]MovieSummary, error) {
	if cached, ok := c.movieSearch.Get(query); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("language", "en-US")

	body, err := c.request(ctx, "search/movie", params)
	if err != nil {
		return nil, err
	}

	var result popularResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析电影搜索响应失败: %w", err)
	}

	c.movieSearch.Set(query, result.Results)
	return result.Results, nil
}

// SearchPeople 按姓名搜索演员
func (c *TMDBClient) SearchPeople(ctx context.Context, query string) ([]PersonSummary, error) {
	if cached, ok := c.peopleSearch.Get(query); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("language", "en-US")

	body, err := c.request(ctx, "search/person", params)
	if err != nil {
		return nil, err
	}

	var result peopleSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析演员搜索响应失败: %w", err)
	}

	c.peopleSearch.Set(query, result.Results)
	return result.Results, nil
}

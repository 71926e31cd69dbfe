package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinechat/internal/model"
	"github.com/user/cinechat/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newFakeTMDB 两部热门电影：101 有正常日期和 2 位演员，
// 102 的日期无法解析且演职员表有 12 人（入库时只取前 10）
func newFakeTMDB(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/movie/popular", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":1,"results":[{"id":101,"title":"Movie A"},{"id":102,"title":"Movie B"}]}`)
	})
	mux.HandleFunc("/movie/101", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":101,"title":"Movie A","overview":"First.","release_date":"2022-06-15","vote_average":8.1,"vote_count":1200,"popularity":55.5}`)
	})
	mux.HandleFunc("/movie/102", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":102,"title":"Movie B","overview":"Second.","release_date":"unknown","vote_average":6.4,"vote_count":300,"popularity":12.3}`)
	})
	mux.HandleFunc("/movie/101/credits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":101,"cast":[{"id":31,"name":"Tom Hanks","order":0},{"id":32,"name":"Robin Wright","order":1}]}`)
	})
	mux.HandleFunc("/movie/102/credits", func(w http.ResponseWriter, r *http.Request) {
		// 12 人，31 号与电影 101 共享
		var cast []string
		cast = append(cast, `{"id":31,"name":"Tom Hanks","order":0}`)
		for i := 0; i < 11; i++ {
			cast = append(cast, fmt.Sprintf(`{"id":%d,"name":"Actor %d","order":%d}`, 33+i, 33+i, i+1))
		}
		fmt.Fprintf(w, `{"id":102,"cast":[%s]}`, strings.Join(cast, ","))
	})
	mux.HandleFunc("/person/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/person/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if id == 31 {
			fmt.Fprint(w, `{"id":31,"name":"Tom Hanks","birthday":"1956-07-09","popularity":80.0,"place_of_birth":"Concord, California, USA"}`)
			return
		}
		fmt.Fprintf(w, `{"id":%d,"name":"Actor %d","popularity":1.0}`, id, id)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newIngestFixture(t *testing.T, serverURL string) (*IngestService, *repository.Repositories) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	repos := repository.NewRepositories(db)

	client := NewTMDBClient("test-token")
	client.BaseURL = serverURL
	client.sleep = func(context.Context, time.Duration) error { return nil }

	svc := NewIngestService(client, repos)
	svc.sleep = func(time.Duration) {}
	svc.isInteractive = func() bool { return false }

	return svc, repos
}

func countAssociations(t *testing.T, repos *repository.Repositories) int64 {
	t.Helper()
	var count int64
	require.NoError(t, repos.DB.Model(&model.MovieActor{}).Count(&count).Error)
	return count
}

func TestIngest_EmptyDatabase(t *testing.T) {
	server := newFakeTMDB(t)
	svc, repos := newIngestFixture(t, server.URL)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx, false))

	movieCount, err := repos.Movie.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), movieCount)

	// 电影 101 两人 + 电影 102 新增 9 人（12 人里只取前 10，31 号已存在）
	actorCount, err := repos.Actor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), actorCount)

	assert.Equal(t, int64(12), countAssociations(t, repos))

	// 日期宽容解析：101 正常，102 视为缺失
	movieA, err := repos.Movie.FindByTMDBID(ctx, 101)
	require.NoError(t, err)
	require.NotNil(t, movieA)
	require.NotNil(t, movieA.ReleaseDate)
	assert.Equal(t, "2022-06-15", movieA.ReleaseDate.Format("2006-01-02"))

	movieB, err := repos.Movie.FindByTMDBID(ctx, 102)
	require.NoError(t, err)
	require.NotNil(t, movieB)
	assert.Nil(t, movieB.ReleaseDate)

	// 演员详情字段落库
	hanks, err := repos.Actor.FindByTMDBID(ctx, 31)
	require.NoError(t, err)
	require.NotNil(t, hanks)
	require.NotNil(t, hanks.Birthday)
	assert.Equal(t, "1956-07-09", hanks.Birthday.Format("2006-01-02"))
	require.NotNil(t, hanks.PlaceOfBirth)
	assert.Equal(t, "Concord, California, USA", *hanks.PlaceOfBirth)
}

func TestIngest_Idempotent(t *testing.T) {
	server := newFakeTMDB(t)
	svc, repos := newIngestFixture(t, server.URL)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx, false))
	require.NoError(t, svc.Run(ctx, true))

	movieCount, err := repos.Movie.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), movieCount)

	actorCount, err := repos.Actor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), actorCount)

	assert.Equal(t, int64(12), countAssociations(t, repos))
}

func TestIngest_NonInteractiveGateRequiresForce(t *testing.T) {
	server := newFakeTMDB(t)
	svc, _ := newIngestFixture(t, server.URL)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx, false))

	err := svc.Run(ctx, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestIngest_InteractivePromptDecline(t *testing.T) {
	server := newFakeTMDB(t)
	svc, repos := newIngestFixture(t, server.URL)
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx, false))

	svc.isInteractive = func() bool { return true }
	svc.stdin = strings.NewReader("n\n")

	require.NoError(t, svc.Run(ctx, false))

	movieCount, err := repos.Movie.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), movieCount)
}

func TestIngest_CastMemberSQLErrorIsIsolated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/movie/popular", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":1,"results":[{"id":301,"title":"Movie D"}]}`)
	})
	mux.HandleFunc("/movie/301", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":301,"title":"Movie D","release_date":"2021-05-05"}`)
	})
	mux.HandleFunc("/movie/301/credits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":301,"cast":[{"id":51,"name":"Good One","order":0},{"id":52,"name":"Conflicting","order":1},{"id":53,"name":"Good Two","order":2}]}`)
	})
	mux.HandleFunc("/person/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/person/")
		// 上游数据异常：52 号的详情带着 51 号的 ID，落库时触发唯一约束冲突
		if id == "52" {
			fmt.Fprint(w, `{"id":51,"name":"Conflicting","popularity":1.0}`)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"name":"Actor %s","popularity":1.0}`, id, id)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc, repos := newIngestFixture(t, server.URL)
	ctx := context.Background()

	// SQL 错误被 SAVEPOINT 隔离：52 号回滚，51/53 号以及整部电影照常提交
	require.NoError(t, svc.Run(ctx, false))

	movieCount, err := repos.Movie.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), movieCount)

	actorCount, err := repos.Actor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), actorCount)
	assert.Equal(t, int64(2), countAssociations(t, repos))
}

func TestIngest_CastMemberFailureIsIsolated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/movie/popular", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":1,"results":[{"id":201,"title":"Movie C"}]}`)
	})
	mux.HandleFunc("/movie/201", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":201,"title":"Movie C","release_date":"2020-01-01"}`)
	})
	mux.HandleFunc("/movie/201/credits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":201,"cast":[{"id":51,"name":"Good One","order":0},{"id":52,"name":"Broken","order":1},{"id":53,"name":"Good Two","order":2}]}`)
	})
	mux.HandleFunc("/person/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/person/")
		if id == "52" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"name":"Actor %s","popularity":1.0}`, id, id)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc, repos := newIngestFixture(t, server.URL)
	ctx := context.Background()

	// 52 号演员抓取失败只影响自己，后面的 53 号照常入库
	require.NoError(t, svc.Run(ctx, false))

	actorCount, err := repos.Actor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), actorCount)
	assert.Equal(t, int64(2), countAssociations(t, repos))
}

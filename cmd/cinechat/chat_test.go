package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinechat/internal/model"
	"github.com/user/cinechat/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	return repository.NewRepositories(db)
}

func TestCheckDatabase_EmptyDatabaseWarning(t *testing.T) {
	repos := newTestRepos(t)
	buf := new(bytes.Buffer)

	checkDatabase(buf, repos)

	out := buf.String()
	assert.Contains(t, out, "Warning: database appears to be empty!")
	assert.Contains(t, out, "Found 0 movies and 0 actors.")
	assert.Contains(t, out, "cinechat ingest")
}

func TestCheckDatabase_ReportsCounts(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Movie.Create(ctx, &model.Movie{TMDBID: 1, Title: "Cast Away"}))
	require.NoError(t, repos.Movie.Create(ctx, &model.Movie{TMDBID: 2, Title: "Forrest Gump"}))
	require.NoError(t, repos.Actor.Create(ctx, &model.Actor{TMDBID: 31, Name: "Tom Hanks"}))

	buf := new(bytes.Buffer)
	checkDatabase(buf, repos)

	out := buf.String()
	assert.Contains(t, out, "Database is ready! Found 2 movies and 1 actors.")
	assert.NotContains(t, out, "Warning")
}

func TestCheckDatabase_MoviesWithoutActorsStillWarns(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Movie.Create(ctx, &model.Movie{TMDBID: 1, Title: "Cast Away"}))

	buf := new(bytes.Buffer)
	checkDatabase(buf, repos)

	assert.Contains(t, buf.String(), "Found 1 movies and 0 actors.")
}

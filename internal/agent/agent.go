package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/sqldatabase"
	"github.com/tmc/langchaingo/tools/sqldatabase/postgresql"
	"github.com/user/cinechat/internal/config"
	"github.com/user/cinechat/internal/repository"
)

// maxIterations 单次提问允许的推理/工具调用轮数上限
const maxIterations = 10

// Facade 问答门面：预置查询工具 + 自由 SQL 链组成一个受限执行器
type Facade struct {
	executor *agents.Executor
	sqlDB    *sqldatabase.SQLDatabase
}

// New 组装 agent 执行器
func New(cfg *config.Config, repos *repository.Repositories) (*Facade, error) {
	llm, err := openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.OpenAIModel),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 失败: %w", err)
	}

	sqlDB, err := sqldatabase.NewSQLDatabaseWithDSN(postgresql.EngineName, cfg.DatabaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化 SQL 数据库链失败: %w", err)
	}

	return newFacade(llm, sqlDB, repos), nil
}

// newFacade 用给定的 LLM 组装执行器，测试时可注入假模型；sqlDB 为 nil 时不挂自由 SQL 工具
func newFacade(llm llms.Model, sqlDB *sqldatabase.SQLDatabase, repos *repository.Repositories) *Facade {
	allTools := NewQueryTools(repos)
	if sqlDB != nil {
		allTools = append(allTools, sqlTool{chain: chains.NewSQLDatabaseChain(llm, 10, sqlDB)})
	}

	oneShot := agents.NewOneShotAgent(llm, allTools, agents.WithMaxIterations(maxIterations))
	executor := agents.NewExecutor(oneShot,
		agents.WithMaxIterations(maxIterations),
		// 输出解析失败交还给 agent 重试，而不是当成硬错误抛出
		agents.WithParserErrorHandler(agents.NewParserErrorHandler(nil)),
	)

	return &Facade{executor: executor, sqlDB: sqlDB}
}

// Answer 回答一个自然语言问题，任何内部错误都转成文本返回，不向上抛
func (f *Facade) Answer(ctx context.Context, question string) string {
	out, err := chains.Run(ctx, f.executor, question)
	if err != nil {
		return fmt.Sprintf("An error occurred: %s", err)
	}
	if out == "" {
		return "I could not find an answer to that question."
	}
	return out
}

// Close 释放 SQL 链的数据库连接
func (f *Facade) Close() error {
	if f.sqlDB == nil {
		return nil
	}
	return f.sqlDB.Close()
}

// sqlTool 把 SQLDatabaseChain 包装成一个可选工具，让 agent 按需发自由 SQL
type sqlTool struct {
	chain chains.Chain
}

var _ tools.Tool = sqlTool{}

func (t sqlTool) Name() string {
	return "query_movie_database"
}

func (t sqlTool) Description() string {
	return "Answer questions by running SQL against the movie database (tables: movies, actors, movie_actors). " +
		"Input: a natural language question about the data not covered by the other tools."
}

func (t sqlTool) Call(ctx context.Context, input string) (string, error) {
	out, err := chains.Run(ctx, t.chain, input)
	if err != nil {
		return fmt.Sprintf("Error executing query: %s", err), nil
	}
	return out, nil
}

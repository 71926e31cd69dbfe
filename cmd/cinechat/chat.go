package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/user/cinechat/internal/agent"
	"github.com/user/cinechat/internal/repository"
)

const welcomeText = `
# cinechat

Welcome! This CLI lets you chat with an AI agent about movies and actors.

## Example questions

* What are the top 5 highest-rated movies?
* Who starred in Inception?
* What movies were released in 2022?
* Tell me about Tom Hanks

Type ` + "`exit`" + ` or ` + "`quit`" + ` to end the session.
`

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question-answering session",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, repos, err := setup()
	if err != nil {
		return err
	}

	facade, err := agent.New(cfg, repos)
	if err != nil {
		return err
	}
	defer facade.Close()

	out := cmd.OutOrStdout()

	printMarkdown(welcomeText)

	// 启动时报告数据库状态
	checkDatabase(out, repos)

	// 优雅处理终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if !isInteractive() {
		fmt.Println(warnStyle.Render("Non-interactive terminal detected!\n\n" +
			"This CLI requires an interactive terminal. The process will now idle.\n" +
			"Press Ctrl+C to exit."))
		for {
			select {
			case <-quit:
				fmt.Println("\nReceived termination signal. Shutting down...")
				return nil
			case <-time.After(60 * time.Second):
			}
		}
	}

	go func() {
		<-quit
		fmt.Println("\nGoodbye! Have a great day!")
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print(promptStyle.Render("Ask me about movies or actors") + " > ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isExitWord(input) {
			fmt.Println("Goodbye! Have a great day!")
			break
		}

		fmt.Println(dimStyle.Render("Thinking..."))
		answer := facade.Answer(ctx, input)
		printMarkdown(answer)
	}

	return nil
}

// checkDatabase 报告已入库的记录数，空库时给出警告
func checkDatabase(w io.Writer, repos *repository.Repositories) {
	ctx := context.Background()

	movieCount, err := repos.Movie.Count(ctx)
	if err != nil {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Database connection error: %s", err)))
		return
	}
	actorCount, err := repos.Actor.Count(ctx)
	if err != nil {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Database connection error: %s", err)))
		return
	}

	if movieCount == 0 || actorCount == 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf(
			"Warning: database appears to be empty!\nFound %d movies and %d actors.\n\nPlease initialize it with: cinechat ingest", movieCount, actorCount)))
		return
	}

	fmt.Fprintln(w, panelStyle.Render(fmt.Sprintf("Database is ready! Found %d movies and %d actors.", movieCount, actorCount)))
}

// printMarkdown 渲染 Markdown 输出，渲染失败时退回纯文本
func printMarkdown(text string) {
	out, err := glamour.Render(text, "auto")
	if err != nil {
		fmt.Println(text)
		return
	}
	fmt.Print(out)
}

// isExitWord 判断是否为结束会话的命令（不区分大小写）
func isExitWord(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "bye", "goodbye":
		return true
	}
	return false
}

// isInteractive 判断是否运行在交互式终端里
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

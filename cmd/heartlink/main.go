package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"heartlink/internal/app"
	"heartlink/pkg/banner"
	"heartlink/pkg/chat"
	"heartlink/pkg/config"
	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/shutdown"
)

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	eff, err := config.LoadEffective(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitWithLevel(eff.Config.Logging.Level)
	banner.Print(eff, version)

	a, err := app.New(eff)
	if err != nil {
		shutdown.Abort("engine bootstrap failed", err, eff.Config.Session.Path)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown_incomplete", "error", err)
		}
	}()

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	go func() {
		if err := a.Run(ctx); err != nil {
			logger.Error("engine_run_failed", "error", err)
			cancel()
		}
	}()

	client := a.Client
	unsub := client.Subscribe(func(view []models.Message) {
		if len(view) == 0 {
			return
		}
		last := view[len(view)-1]
		marker := ""
		if last.IsPlaceholder() {
			marker = " (sending...)"
		}
		fmt.Printf("[%s] %s: %s%s\n", last.CreatedAt.Local().Format("15:04:05"), last.SenderID, renderBody(last), marker)
	})
	defer unsub()

	fmt.Printf("signed in as %s\n", client.LocalUserID())

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("bye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, client, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// handleLine interprets one REPL line; returns true to exit.
func handleLine(ctx context.Context, client *chat.Client, line string) bool {
	switch {
	case line == "":
		return false
	case line == "/quit":
		return true
	case line == "/status":
		fmt.Printf("connection: %s\n", client.ConnectionStatus())
		return false
	case strings.HasPrefix(line, "/to "):
		peer := strings.TrimSpace(strings.TrimPrefix(line, "/to "))
		if err := client.SelectConversation(ctx, peer); err != nil {
			fmt.Printf("select failed: %v\n", err)
			return false
		}
		msgs := client.CurrentMessages()
		fmt.Printf("-- conversation with %s (%d messages) --\n", peer, len(msgs))
		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderID, renderBody(m))
		}
		return false
	case strings.HasPrefix(line, "/"):
		fmt.Printf("unknown command %s\n", line)
		return false
	default:
		if err := client.Send(ctx, line, ""); err != nil {
			fmt.Printf("send failed: %v\n", err)
		}
		return false
	}
}

func renderBody(m models.Message) string {
	if m.Content != "" {
		return m.Content
	}
	return "[attachment] " + m.AttachmentURL
}

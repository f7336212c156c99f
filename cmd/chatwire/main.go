package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/servimatch/chatwire/internal/attachment"
	"github.com/servimatch/chatwire/internal/cache"
	"github.com/servimatch/chatwire/internal/chat"
	"github.com/servimatch/chatwire/internal/config"
	"github.com/servimatch/chatwire/internal/protocol"
	"github.com/servimatch/chatwire/internal/quote"
	"github.com/servimatch/chatwire/internal/status"
	"github.com/servimatch/chatwire/internal/stub"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("chatwire v%s\n", version)
	case "chat":
		if err := runChat(os.Args[2:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "stub":
		if err := runStub(os.Args[2:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("chatwire - marketplace chat session client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatwire chat      Open a chat session (terminal surface)")
	fmt.Println("  chatwire stub      Run the local counterpart gateway")
	fmt.Println("  chatwire version   Show version info")
}

func loadConfig(flagPath string) (*config.Config, string) {
	cfgPath := config.ResolveConfigPath(flagPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", cfgPath, "error", err)
		cfg, err = config.Default()
		if err != nil {
			slog.Error("default config", "error", err)
			os.Exit(1)
		}
	}
	config.Set(cfg)
	return cfg, cfgPath
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	sessionID := fs.Int64("session", 0, "service request id")
	roleFlag := fs.String("role", "requester", "requester | provider")
	statusFlag := fs.String("status", "accepted", "current request status")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *sessionID <= 0 {
		return fmt.Errorf("a positive --session id is required")
	}
	cfg, _ := loadConfig(*cfgPath)

	role := chat.RoleRequester
	if *roleFlag == "provider" {
		role = chat.RoleProvider
	}

	retry := chat.RetryConfig{
		MaxAttempts:      cfg.Retry.MaxAttempts,
		Delay:            cfg.Retry.RetryDelay(),
		HandshakeTimeout: cfg.Retry.HandshakeTimeout(),
	}
	conn := chat.NewConn(cfg.Gateway.URL, cfg.Auth.Token, retry)
	defer conn.Teardown()

	surface := chat.NewSurface(conn, conn.Log(), cache.NewMemory(),
		quote.NewClient(cfg.API.URL, cfg.Auth.Token), role)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	acc, err := surface.Open(ctx, *sessionID, status.Parse(*statusFlag))
	if err != nil {
		return err
	}
	if !acc.Enabled {
		fmt.Println(acc.StatusMessage)
		return nil
	}
	if acc.ReadOnly {
		fmt.Println(acc.StatusMessage)
	}

	go renderEvents(ctx, conn, surface)
	return readComposer(ctx, surface)
}

func renderEvents(ctx context.Context, conn *chat.Conn, surface *chat.Surface) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.Events():
			surface.HandleEvent(ev)
			switch ev.Type {
			case chat.EventState:
				fmt.Printf("-- %s --\n", ev.State)
				if ev.State == chat.Errored {
					fmt.Println("-- connection lost, check your network --")
				}
			case chat.EventHistory:
				for _, m := range ev.History {
					printMessage(surface, m)
				}
			case chat.EventMessage:
				printMessage(surface, *ev.Message)
			case chat.EventError:
				fmt.Printf("!! %v\n", ev.Err)
			}
		}
	}
}

func printMessage(surface *chat.Surface, m protocol.ChatMessage) {
	who := string(m.Sender)
	if m.SenderName != "" {
		who = m.SenderName
	}
	line := fmt.Sprintf("[%s] %s", who, m.Content)
	if att := surface.ResolveAttachment(m); att.Kind != attachment.KindNone {
		line += fmt.Sprintf("  (%s: %s, %d bytes)", att.Kind, att.Name, att.Size)
	}
	fmt.Println(line)
}

func readComposer(ctx context.Context, surface *chat.Surface) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		var err error
		switch {
		case strings.HasPrefix(line, "/file "):
			err = sendFile(surface, strings.TrimSpace(strings.TrimPrefix(line, "/file ")))
		case strings.HasPrefix(line, "/quote "):
			err = sendQuote(ctx, surface, strings.TrimSpace(strings.TrimPrefix(line, "/quote ")))
		case strings.TrimSpace(line) == "":
			continue
		default:
			err = surface.Send(chat.Outgoing{Text: line})
		}
		if err != nil {
			fmt.Printf("!! %v\n", err)
		}
	}
	return scanner.Err()
}

func sendFile(surface *chat.Surface, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return surface.Send(chat.Outgoing{
		Filename: filepath.Base(path),
		MimeType: mimeForFile(path, data),
		Data:     data,
	})
}

func sendQuote(ctx context.Context, surface *chat.Surface, args string) error {
	parts := strings.SplitN(args, " ", 2)
	amount, err := decimal.NewFromString(parts[0])
	if err != nil {
		return fmt.Errorf("invalid amount %q", parts[0])
	}
	note := ""
	if len(parts) == 2 {
		note = parts[1]
	}
	if err := surface.SubmitQuote(ctx, amount, note); err != nil {
		return err
	}
	fmt.Println("-- quote submitted --")
	return nil
}

// mimeForFile sniffs image signatures first, then falls back to the
// extension for document types.
func mimeForFile(path string, data []byte) string {
	if m := attachment.SniffMime(data); m != "application/octet-stream" {
		return m
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

func runStub(args []string) error {
	fs := flag.NewFlagSet("stub", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	cfg, resolvedPath := loadConfig(*cfgPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	go config.Watch(ctx, resolvedPath, func(c *config.Config) {
		slog.Info("stub config updated; restart to apply port changes")
	})

	srv := stub.NewServer(cfg.Stub)
	return srv.Start(ctx)
}

// ABOUTME: Terminal chat client built on the session controller.
// ABOUTME: Renders the conversation view with colorized left/right alignment.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"

	"github.com/serviceconnect/chat-gateway/internal/client"
	"github.com/serviceconnect/chat-gateway/internal/session"
)

// chatConfig is the TOML config for the terminal client.
type chatConfig struct {
	GatewayURL  string `toml:"gateway_url"`
	IdentityURL string `toml:"identity_url"`
	Token       string `toml:"token"`
}

// getToken returns the JWT token from CONNECT_TOKEN env var, the config
// file, or ~/.config/connect/token.
func getToken(cfg *chatConfig) string {
	if token := os.Getenv("CONNECT_TOKEN"); token != "" {
		return token
	}
	if cfg.Token != "" {
		return cfg.Token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "connect", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// loadConfig reads the TOML config if it exists; a missing file yields
// defaults so flags and env vars can stand alone.
func loadConfig(path string) (*chatConfig, error) {
	cfg := &chatConfig{
		GatewayURL:  "http://localhost:8080",
		IdentityURL: "http://localhost:9000",
	}
	if path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return cfg, nil
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		path = filepath.Join(configDir, "connect", "chat.toml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// wsURL derives the WebSocket endpoint from the gateway's HTTP base URL.
func wsURL(gatewayURL string) string {
	u := strings.TrimSuffix(gatewayURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func main() {
	configPath := flag.String("config", "", "Path to chat.toml (default ~/.config/connect/chat.toml)")
	conversation := flag.String("conversation", "", "Conversation ID to join")
	flag.Parse()

	if *conversation == "" {
		fmt.Fprintln(os.Stderr, "Error: --conversation is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *conversation); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, conversationID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	token := getToken(cfg)
	if token == "" {
		return fmt.Errorf("no token: set CONNECT_TOKEN or write ~/.config/connect/token")
	}

	api := client.New(cfg.IdentityURL, cfg.GatewayURL, token, nil)
	ctrl, err := session.New(session.Options{
		API:            api,
		Dialer:         &session.WSDialer{},
		GatewayWSURL:   wsURL(cfg.GatewayURL),
		ConversationID: conversationID,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	gray := color.New(color.FgHiBlack)
	gray.Println("loading conversation...")

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	identity := ctrl.Identity()
	gray.Printf("connected as %s %s\n\n", identity.Name, identity.Surname)

	render(ctrl.View())

	// Input loop feeds sends; the notification loop repaints.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ctrl.Done():
			return fmt.Errorf("session ended")
		case n := <-ctrl.Notifications():
			handleNotification(ctrl, n)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := ctrl.Send(text); err != nil {
				color.Red("send failed: %v", err)
				continue
			}
			render(ctrl.View())
		}
	}
}

func handleNotification(ctrl *session.Controller, n session.Notification) {
	switch n.Type {
	case session.NoteViewChanged:
		render(ctrl.View())
	case session.NoteStateChanged:
		if n.State == session.StateReconnecting {
			color.Yellow("reconnecting...")
		}
	case session.NoteError:
		color.Red("%v", n.Err)
	}
}

const viewWidth = 72

// render repaints the conversation: other users on the left, own
// messages right-aligned, pending sends dimmed.
func render(view []session.Entry) {
	fmt.Print("\033[2J\033[H")

	left := color.New(color.FgCyan)
	right := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	for _, e := range view {
		ts := e.Timestamp.Local().Format(time.Kitchen)
		switch {
		case e.Pending:
			line := fmt.Sprintf("%s (sending...)", e.Text)
			dim.Printf("%*s\n", viewWidth, line)
		case e.Side == session.SideRight:
			line := fmt.Sprintf("%s  %s", e.Text, ts)
			right.Printf("%*s\n", viewWidth, line)
		default:
			left.Printf("%s  %s\n", ts, e.Text)
		}
	}
	fmt.Print("> ")
}

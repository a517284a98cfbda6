package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/pv/precog-panel/internal/config"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/precog"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagAPIURL  string
	flagUser    string
	flagTimeout time.Duration
	flagFormat  string
	flagDebug   bool
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "precogctl",
		Short: "PRECOG command line client",
		Long: strings.TrimSpace(`
precogctl talks to the PRECOG API directly: list devices and issues,
record review decisions, export issues and maintain devices.

The password is read from PRECOG_PASSWORD or prompted for on the terminal.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if flagDebug {
				level = slog.LevelDebug
			}
			logger.Init("text", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", envOr("PRECOG_API_URL", "http://localhost:5000"), "PRECOG API base URL")
	cmd.PersistentFlags().StringVarP(&flagUser, "user", "u", os.Getenv("PRECOG_USER"), "User name")
	cmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", config.DefaultRequestTimeout, "Request timeout")
	cmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "console", "Output format: console|json")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	cmd.Version = version

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newIssuesCmd())
	cmd.AddCommand(newReviewCmd())
	cmd.AddCommand(newDeleteIssueCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newHeartbeatCmd())
	cmd.AddCommand(newResetTestDataCmd())
	cmd.AddCommand(newPushSamplesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "precogctl version: %s\n", version)
		},
	}
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// readPassword берёт пароль из PRECOG_PASSWORD, терминала или первой строки stdin
func readPassword(cmd *cobra.Command) (string, error) {
	if p := os.Getenv("PRECOG_PASSWORD"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// connect получает HMAC ключ и возвращает авторизованного клиента
func connect(ctx context.Context, cmd *cobra.Command) (*precog.Client, error) {
	if flagUser == "" {
		return nil, errors.New("user name required (--user or PRECOG_USER)")
	}
	password, err := readPassword(cmd)
	if err != nil {
		return nil, err
	}

	client := precog.NewClient(flagAPIURL, nil, flagTimeout)
	key, err := client.RequestHMACKey(ctx, flagUser, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	client.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: precog.HeaderHMACKey}))
	logger.Debug("Authenticated", "user", flagUser, "api", client.BaseURL())
	return client, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 4*flagTimeout)
}

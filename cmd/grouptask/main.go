// Command grouptask runs the group task bot: the webhook server, the
// recurrence generator, and a few operator utilities.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chiehyu/grouptask/internal/config"
	"github.com/chiehyu/grouptask/internal/credential"
	"github.com/chiehyu/grouptask/internal/engine"
	"github.com/chiehyu/grouptask/internal/line"
	"github.com/chiehyu/grouptask/internal/model"
	"github.com/chiehyu/grouptask/internal/server"
	"github.com/chiehyu/grouptask/internal/store"
)

var (
	flagConfig string
	flagDate   string
	flagGroup  string
	flagAll    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grouptask",
		Short: "Chat-command task tracker for group conversations",
		Long: `Grouptask tracks shared to-dos driven entirely by chat commands
(#新增, #完成, #列表, ...) and serves the LINE webhook plus the
automation API used by external schedulers.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigPath(), "Config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// openEngine loads config and opens the store and engine shared by the
// subcommands.
func openEngine() (*config.Config, *store.SQLiteStore, *engine.Engine, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger := newLogger(cfg.LogLevel)
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening store at %s: %w", cfg.Database.Path, err)
	}

	return cfg, st, engine.New(st, logger), logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, eng, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			channelSecret, err := credential.Resolve(cfg.Line.ChannelSecret, credential.KeyChannelSecret)
			if err != nil {
				return err
			}
			channelToken, err := credential.Resolve(cfg.Line.ChannelToken, credential.KeyChannelToken)
			if err != nil {
				return err
			}
			apiKey, err := credential.Resolve(cfg.API.Key, credential.KeyAPIKey)
			if err != nil {
				return err
			}

			srv := server.New(eng, st, line.NewClient(channelToken), channelSecret, apiKey, logger)
			httpSrv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", cfg.Server.Addr, "db", cfg.Database.Path)
				errCh <- httpSrv.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case sig := <-sigCh:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := httpSrv.Shutdown(ctx); err != nil {
					return fmt.Errorf("shutting down server: %w", err)
				}
			}
			return nil
		},
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create today's occurrences of recurring tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, eng, _, err := openEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			date := time.Now().UTC()
			if flagDate != "" {
				date, err = time.ParseInLocation(time.DateOnly, flagDate, time.UTC)
				if err != nil {
					return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
				}
			}

			created, err := eng.GenerateOccurrences(cmd.Context(), date)
			if err != nil {
				return err
			}

			if len(created) == 0 {
				fmt.Println("no occurrences due")
				return nil
			}
			for _, t := range created {
				fmt.Printf("%s  %s  %s\n", t.Ref(), t.MemberName, t.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDate, "date", "", "Generation date (YYYY-MM-DD, default today)")
	return cmd
}

var (
	refStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	priorityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks for a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, eng, _, err := openEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			groupID := flagGroup
			if groupID == "" {
				groupID = cfg.DefaultGroupID
			}
			if groupID == "" {
				return fmt.Errorf("no group: pass --group or set default_group_id")
			}

			tasks, err := eng.List(cmd.Context(), groupID, "")
			if err != nil {
				return err
			}

			today := time.Now().UTC()
			shown := 0
			for _, t := range tasks {
				if t.Status == model.TaskStatusDone && !flagAll {
					continue
				}
				fmt.Println(renderTaskLine(t, today))
				shown++
			}
			if shown == 0 {
				fmt.Println("no tasks")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagGroup, "group", "", "Group scope id")
	cmd.Flags().BoolVar(&flagAll, "all", false, "Include completed tasks")
	return cmd
}

func renderTaskLine(t model.Task, today time.Time) string {
	row := fmt.Sprintf("%s  %s: %s", refStyle.Render(t.Ref()), t.MemberName, t.Content)
	if t.Priority == model.PriorityHigh {
		row += "  " + priorityStyle.Render("!高")
	}
	if t.DueDate != nil {
		due := t.DueDate.Format("2006/01/02")
		if t.Status == model.TaskStatusOpen && t.DueDate.Before(today) {
			row += "  " + overdueStyle.Render("due "+due)
		} else {
			row += "  due " + due
		}
	}
	if t.IsRecurring() {
		row += "  [" + t.Recurrence.Describe() + "]"
	}
	if t.Status == model.TaskStatusDone {
		return doneStyle.Render(row)
	}
	return row
}

// credentialKeys maps the CLI names to keyring keys.
var credentialKeys = map[string]string{
	"channel-secret": credential.KeyChannelSecret,
	"channel-token":  credential.KeyChannelToken,
	"api-key":        credential.KeyAPIKey,
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage credentials in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a credential (channel-secret, channel-token, api-key)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok := credentialKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown credential %q", args[0])
			}
			if err := credential.Set(key, args[1]); err != nil {
				return err
			}
			fmt.Printf("stored %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok := credentialKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown credential %q", args[0])
			}
			if err := credential.Delete(key); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

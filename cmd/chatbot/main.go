package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatbot/internal/app"
	"chatbot/internal/config"
	"chatbot/internal/db"
	"chatbot/internal/domain"
	"chatbot/internal/engine"
	"chatbot/internal/logging"
	"chatbot/internal/mcpserver"
	"chatbot/internal/remote"
	"chatbot/internal/repo"
	"chatbot/internal/server"
	chatbotsdk "chatbot/sdk/go"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Chat assistant CLI",
	Long: `Chatbot routes free-text messages to a todo list, a background command runner,
a desktop controller and a set of remote helper services.
- Messages: "add todo buy milk", "execute command ls -la", "search go generics", "what time is it in jst".
- Actions: commands, file operations and searches run in the background; poll them with 'chatbot action get'.
- Services: remote time/search/browser/thinking/memory/desktop services configured in chatbot.yml.
- Workspace: the .chatbot directory holds the SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CHATBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/chatbot.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human-readable logs")
	rootCmd.PersistentFlags().String("server", "", "talk to a running API server instead of the local workspace")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(todoCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(servicesCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API, websocket chat and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					Remote:   a.Remote,
					Monitor:  a.Monitor,
					Desktop:  a.Desktop,
					BasePath: basePath,
					Log:      logging.WithComponent(a.Log, "server"),
				})
				if err != nil {
					return err
				}
				hooks := server.NewWebhookDispatcher(a.Engine, a.Config.Webhooks, logging.WithComponent(a.Log, "webhooks"))
				go hooks.Run(ctx)
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving chatbot API")
				fmt.Printf("Serving chatbot API on http://%s%s (websocket /ws/chat, OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", displayAddr(addr), basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default server.base_path from config)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := strings.Join(args, " ")
			if c := remoteClient(); c != nil {
				reply, err := c.Send(cmd.Context(), msg)
				if err != nil {
					return err
				}
				return printReply(reply.Response, reply)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				reply := a.Engine.Submit(ctx, msg)
				return printReply(reply.Text, reply)
			})
		},
	}
}

func printReply(text string, full any) error {
	if viper.GetBool("json") {
		return printJSON(full)
	}
	fmt.Println(text)
	return nil
}

func todoCmd() *cobra.Command {
	todo := &cobra.Command{Use: "todo", Short: "Manage todos"}
	todo.AddCommand(todoListCmd())
	todo.AddCommand(todoAddCmd())
	todo.AddCommand(todoDoneCmd())
	todo.AddCommand(todoDeleteCmd())
	return todo
}

func todoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List todos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				todos, err := e.ListTodos(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(todos)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Done", "Priority", "Updated"})
				for _, t := range todos {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Completed, t.Priority, t.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func todoAddCmd() *cobra.Command {
	var opts engine.TodoCreateOptions
	var priority string
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Title = strings.Join(args, " ")
			opts.Priority = domain.Priority(priority)
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.CreateTodo(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Description, "description", "", "todo description")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high (default medium)")
	return cmd
}

func todoDoneCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a todo completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.UpdateTodo(ctx, id, repo.MarkCompleted(!undo))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark as not completed")
	return cmd
}

func todoDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.DeleteTodo(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("deleted todo %d (%s)\n", t.ID, t.Title)
				return nil
			})
		},
	}
}

func actionCmd() *cobra.Command {
	act := &cobra.Command{Use: "action", Short: "Inspect background actions"}
	act.AddCommand(actionListCmd())
	act.AddCommand(actionGetCmd())
	return act
}

func actionListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actions, err := e.ListActions(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(actions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Description", "Status", "Created"})
				for _, a := range actions {
					tw.AppendRow(table.Row{a.ID, a.Kind, a.Description, a.Status, a.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of actions")
	return cmd
}

func actionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one action with its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if c := remoteClient(); c != nil {
				a, err := c.GetAction(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				a, err := e.GetAction(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Probe the remote helper services",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []remote.ServiceStatus
			if c := remoteClient(); c != nil {
				items, err := c.Services(cmd.Context(), true)
				if err != nil {
					return err
				}
				for _, s := range items {
					statuses = append(statuses, remote.ServiceStatus(s))
				}
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				f := remote.New(cfg.Services, newLogger(cfg))
				statuses = f.CheckAll(cmd.Context(), cfg.Health.Timeout)
			}
			if viper.GetBool("json") {
				return printJSON(statuses)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Service", "Port", "URL", "Status"})
			for _, s := range statuses {
				tw.AppendRow(table.Row{s.Name, s.Port, s.URL, s.Status})
			}
			tw.Render()
			return nil
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return mcpserver.Run(a.Engine, version)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage chatbot.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default chatbot.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.LatestEvents(ctx, n, 0, evtType, entityKind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				for _, evt := range events {
					payload, _ := json.Marshal(evt.Payload)
					fmt.Printf("%d %s %s %s#%d %s\n", evt.ID, evt.TS, evt.Type, evt.EntityKind, evt.EntityID, payload)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "filter by entity kind (todo, action)")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if viper.GetBool("log-pretty") {
		cfg.Log.Pretty = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}

// withApp opens the workspace, starts background work and drains it on return.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Config:    cfg,
		Log:       newLogger(cfg),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// withEngine is withApp without the health monitor, for short commands.
func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Health.Enabled = false
	a, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Config:    cfg,
		Log:       newLogger(cfg),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a.Engine)
}

func remoteClient() *chatbotsdk.Client {
	base := viper.GetString("server")
	if base == "" {
		return nil
	}
	return chatbotsdk.New(base)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

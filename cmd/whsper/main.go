package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"whsper/internal/app"
	"whsper/internal/config"
	"whsper/internal/db"
	"whsper/internal/domain"
	"whsper/internal/engine"
	"whsper/internal/fixtures"
	"whsper/internal/server"
	"whsper/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "whsper",
	Short: "Whsper claim query CLI",
	Long: `Whsper answers read-only questions about claims held in a workspace store.
- Claim: an amount of a token a creator set aside for a recipient; pending until claimed or cancelled.
- Indices: every claim id is listed under its recipient and its creator, oldest first.
- Listings return pending claims only unless --include-terminal is set; pages hold 1 to 100 claims.
- Window config: the claim window length and minimum delay; zeros when never configured.
- Workspace: whsper.yml plus the .whsper directory holding the sqlite or badger store.`,
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
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WHSPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: sqlite or badger (overrides whsper.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides whsper.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(claimCmd())
	rootCmd.AddCommand(claimsCmd())
	rootCmd.AddCommand(windowCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(fixturesCmd())
	rootCmd.AddCommand(serveCmd())
}

func claimCmd() *cobra.Command {
	c := &cobra.Command{Use: "claim", Short: "Inspect a single claim"}
	c.AddCommand(claimShowCmd())
	return c
}

func claimShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <claim-id>",
		Short: "Show a claim by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid claim id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				res, err := e.GetPendingClaim(ctx, id)
				if err != nil {
					return err
				}
				c, ok := res.Claim()
				if viper.GetBool("json") {
					out := map[string]any{"result": res.String()}
					if ok {
						out["claim"] = c
					}
					return printJSON(out)
				}
				if !ok {
					fmt.Printf("claim %d not found\n", id)
					return nil
				}
				printClaims([]domain.Claim{c})
				return nil
			})
		},
	}
}

func claimsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "claims",
		Short: "List claims through the recipient or creator index",
	}
	c.AddCommand(claimsListCmd(domain.ByRecipient, "recipient", "List claims addressed to a recipient"))
	c.AddCommand(claimsListCmd(domain.ByCreator, "creator", "List claims created by an address"))
	return c
}

func claimsListCmd(idx domain.Index, use, short string) *cobra.Command {
	var limit uint32
	var includeTerminal bool
	cmd := &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flag *bool
			if cmd.Flags().Changed("include-terminal") {
				flag = &includeTerminal
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				n := limit
				if !cmd.Flags().Changed("limit") {
					n = cfg.Query.DefaultLimit
				}
				items, err := e.ListBy(ctx, idx, domain.Address(args[0]), n, flag)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				if len(items) == 0 {
					fmt.Println("no claims")
					return nil
				}
				printClaims(items)
				return nil
			})
		},
	}
	cmd.Flags().Uint32Var(&limit, "limit", 20, "page size, clamped to 1..100 (default from whsper.yml)")
	cmd.Flags().BoolVar(&includeTerminal, "include-terminal", false, "include claimed and cancelled claims")
	return cmd
}

func windowCmd() *cobra.Command {
	c := &cobra.Command{Use: "window", Short: "Inspect the claim window config"}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the claim window config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				wc, err := e.ClaimWindowConfig(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(wc)
				}
				t := newTable()
				t.AppendHeader(table.Row{"Window duration (s)", "Min claim delay (s)"})
				t.AppendRow(table.Row{wc.WindowDurationSecs, wc.MinClaimDelaySecs})
				t.Render()
				return nil
			})
		},
	})
	return c
}

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage whsper.yml",
		Long:  "whsper.yml selects the storage backend, the server address and base path, the default page size and the log format. Environment variables WHSPER_BACKEND and WHSPER_LOG_LEVEL override it.",
	}
	c.AddCommand(configInitCmd())
	c.AddCommand(configShowCmd())
	return c
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default whsper.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
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
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func fixturesCmd() *cobra.Command {
	c := &cobra.Command{Use: "fixtures", Short: "Seed the store for development"}
	var file string
	load := &cobra.Command{
		Use:   "load",
		Short: "Load claims, index entries and window config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			doc, err := fixtures.FromFile(file)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store, _ *config.Config, log *slog.Logger) error {
				sum, err := fixtures.Load(ctx, s, doc)
				if err != nil {
					return err
				}
				log.Info("fixtures loaded", "file", file, "claims", sum.Claims, "index_entries", sum.IndexEntries)
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("loaded %d claims, %d index entries\n", sum.Claims, sum.IndexEntries)
				return nil
			})
		},
	}
	load.Flags().StringVarP(&file, "file", "f", "", "fixture YAML file")
	c.AddCommand(load)
	return c
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store, cfg *config.Config, log *slog.Logger) error {
				if !cmd.Flags().Changed("addr") {
					addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") {
					basePath = cfg.Server.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:       engine.New(s, log),
					BasePath:     basePath,
					DefaultLimit: cfg.Query.DefaultLimit,
					Logger:       log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.Info("serving whsper api", "addr", addr, "base_path", basePath, "backend", cfg.Storage.Backend)
				fmt.Printf("Serving Whsper API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (default from whsper.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path (default from whsper.yml)")
	return cmd
}

// --- helpers ---

func resolveConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("backend"), viper.GetString("log-level"))
}

func withStore(ctx context.Context, fn func(context.Context, store.Store, *config.Config, *slog.Logger) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	log, err := app.NewLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	s, err := app.OpenStore(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s, cfg, log)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, *config.Config) error) error {
	return withStore(ctx, func(ctx context.Context, s store.Store, cfg *config.Config, log *slog.Logger) error {
		return fn(ctx, engine.New(s, log), cfg)
	})
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func printClaims(items []domain.Claim) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Status", "Amount", "Token", "Creator", "Recipient", "Window"})
	for _, c := range items {
		t.AppendRow(table.Row{
			c.ID, c.Status, c.Amount, c.Token, c.Creator, c.Recipient,
			fmt.Sprintf("%d..%d", c.ClaimWindowStart, c.ClaimWindowEnd),
		})
	}
	t.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

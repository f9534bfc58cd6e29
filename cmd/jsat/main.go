package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/jsat/internal/handler"
	appI18n "github.com/pavelanni/jsat/internal/i18n"
	"github.com/pavelanni/jsat/internal/judge"
	"github.com/pavelanni/jsat/internal/llm"
	"github.com/pavelanni/jsat/internal/llm/prompts"
	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
	"github.com/pavelanni/jsat/internal/standings"
	"github.com/pavelanni/jsat/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "jsat",
		Short:             "Skills assessment server with level-gated scoring",
		PersistentPreRunE: loadEnvFile,
		SilenceUsage:      true,
	}
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before reading configuration")

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), evaluateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `jsat --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// loadEnvFile loads variables from the env file without overriding ones already set.
func loadEnvFile(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "jsat.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to questions JSON files (repeatable)")
	f.String("judge-url", "", "Judge0 CE base URL (empty disables code execution)")
	f.String("judge-key", "", "RapidAPI key for the Judge0 endpoint")
	f.String("judge-host", "", "RapidAPI host header (defaults to the judge URL host)")
	f.Duration("judge-timeout", 30*time.Second, "Timeout for one code execution")
	f.Int("language-id", judge.DefaultLanguageID, "Judge0 language for questions without one")
	f.String("correctness-mode", string(scoring.ModeSubsequence), "Correctness check (subsequence, exact)")
	f.String("llm-url", "", "OpenAI-compatible API base URL for code review (empty disables review)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.String("prompt-variant", string(prompts.VariantStandard), "Review prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.Int("standings-concurrency", standings.DefaultConcurrency, "Candidates loaded concurrently when ranking")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set JSAT_ADMIN_PASSWORD)")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the leaderboard with per-candidate metrics as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "jsat.db", "SQLite database path")
	f.String("level", scoring.TierAll, "Tier filter (all, Beginner, Novice, Intermediate, Advanced, Expert)")
	f.Int("standings-concurrency", standings.DefaultConcurrency, "Candidates loaded concurrently")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a code file offline at a given level",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.String("code", "", "Path to the submitted source file (required)")
	f.String("expected", "", "Expected answer")
	f.Int("level", 1, "Candidate level (1-5)")
	f.Float64("time-taken", 0, "Minutes spent on the question")
	f.Float64("runtime", 0, "Measured runtime in seconds (ignored when --judge-url is set)")
	f.String("stdout", "", "Program output for exact mode (ignored when --judge-url is set)")
	f.Int("errors", 0, "Runs that failed")
	f.Int("runs", 1, "Total runs")
	f.String("correctness-mode", string(scoring.ModeSubsequence), "Correctness check (subsequence, exact)")
	f.String("judge-url", "", "Judge0 CE base URL to execute the code")
	f.String("judge-key", "", "RapidAPI key for the Judge0 endpoint")
	f.String("judge-host", "", "RapidAPI host header")
	f.Int("language-id", judge.DefaultLanguageID, "Judge0 language")
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("JSAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("jsat")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/jsat")
	v.AddConfigPath("/etc/jsat")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func newJudge(v *viper.Viper) (judge.Executor, error) {
	if v.GetString("judge-url") == "" {
		slog.Warn("no judge URL configured, code execution disabled")
		return nil, nil
	}
	c, err := judge.New(judge.Config{
		BaseURL: v.GetString("judge-url"),
		APIKey:  v.GetString("judge-key"),
		Host:    v.GetString("judge-host"),
		Timeout: v.GetDuration("judge-timeout"),
	})
	if err != nil {
		return nil, fmt.Errorf("create judge client: %w", err)
	}
	return c, nil
}

func newReviewer(v *viper.Viper) (handler.Reviewer, error) {
	if v.GetString("llm-url") == "" {
		return nil, nil
	}
	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	c, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), prompts.Variant(variant))
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	slog.Info("code review enabled", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"), "variant", variant)
	return c, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode, err := scoring.ParseMode(v.GetString("correctness-mode"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	exec, err := newJudge(v)
	if err != nil {
		return err
	}
	reviewer, err := newReviewer(v)
	if err != nil {
		return err
	}

	cfg := model.ServerConfig{
		SecureCookies:        v.GetBool("secure-cookies"),
		CorrectnessMode:      mode,
		LanguageID:           v.GetInt("language-id"),
		StandingsConcurrency: v.GetInt("standings-concurrency"),
	}
	h, err := handler.New(db, exec, reviewer, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupSessions(ctx, db, time.Hour)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"correctness_mode", mode,
		"judge_url", v.GetString("judge-url"),
		"language_id", cfg.LanguageID,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := db.PurgeExpiredSessions()
		if err != nil {
			slog.Warn("failed to purge expired sessions", "error", err)
		} else if n > 0 {
			slog.Info("purged expired sessions", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := standings.NewBuilder(db, v.GetInt("standings-concurrency")).Export(cmd.Context(), v.GetString("level"))
	if err != nil {
		return fmt.Errorf("build leaderboard: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), v.GetString("output"), export)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode, err := scoring.ParseMode(v.GetString("correctness-mode"))
	if err != nil {
		return err
	}
	code, err := os.ReadFile(v.GetString("code"))
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}

	exec := scoring.ExecutionResult{
		RuntimeSeconds: v.GetFloat64("runtime"),
		Stdout:         v.GetString("stdout"),
	}
	runs, errorRuns := v.GetInt("runs"), v.GetInt("errors")
	if v.GetString("judge-url") != "" {
		if cmd.Flags().Changed("runs") || cmd.Flags().Changed("errors") {
			return fmt.Errorf("--runs and --errors cannot be combined with --judge-url")
		}
		c, err := judge.New(judge.Config{
			BaseURL: v.GetString("judge-url"),
			APIKey:  v.GetString("judge-key"),
			Host:    v.GetString("judge-host"),
		})
		if err != nil {
			return err
		}
		res, err := c.Execute(cmd.Context(), judge.Request{SourceCode: string(code), LanguageID: v.GetInt("language-id")})
		if err != nil {
			return fmt.Errorf("execute code: %w", err)
		}
		exec = res.Execution()
		runs, errorRuns = 1, 0
		if !res.Accepted() {
			errorRuns = 1
		}
		slog.Info("code executed", "status", res.Status.Description, "runtime", res.RuntimeSeconds)
	}

	result, err := scoring.EvaluateLevel(
		v.GetInt("level"), exec, string(code), v.GetFloat64("time-taken"),
		errorRuns, runs, v.GetString("expected"), mode,
	)
	if err != nil {
		return err
	}
	tier, err := scoring.TierForLevel(result.Level)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), "-", map[string]any{
		"tier":       tier,
		"evaluation": result,
		"record":     result.Record(),
		"points":     result.Points(),
		"quality":    result.QualityScore(),
	})
}

func writeOutput(stdout io.Writer, outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := store.ContentHash(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to keep attempts consistent",
				"path", path)
			continue
		}

		n, err := db.ImportQuestions(data)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", n)
	}
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.ProfileCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or JSAT_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateProfile(model.Profile{
		Username:      "admin",
		FirstName:     "Administrator",
		PasswordHash:  string(hash),
		Role:          model.UserRoleAdmin,
		RoleFinalized: true,
		Active:        true,
	})
	if err != nil {
		return fmt.Errorf("create admin profile: %w", err)
	}

	slog.Info("seeded default admin profile", "username", "admin")
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/wavecore/internal/campaign"
	"github.com/l1jgo/wavecore/internal/config"
	"github.com/l1jgo/wavecore/internal/data"
	"github.com/l1jgo/wavecore/internal/persist"
	"github.com/l1jgo/wavecore/internal/scripting"
	"github.com/l1jgo/wavecore/internal/stage"
	"github.com/l1jgo/wavecore/internal/template"
	"github.com/l1jgo/wavecore/internal/wave"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(cmd string, stageID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              wavecore  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     pooled spawns · scheduled waves       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mcommand:\033[0m %s \033[90m(stage: %d)\033[0m\n\n", cmd, stageID)
}

// displayWidth counts CJK characters as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	valStr := fmt.Sprint(value)
	dotsLen := 42 - displayWidth(label) - len(valStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), valStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ────────────────────────────────────────────────────

func run() error {
	cmd := "play"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if cmd != "play" && cmd != "import" {
		return fmt.Errorf("unknown command %q (want play or import)", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/wavecore.toml", "config file path")
	stageID := fs.Int("stage", 0, "stage to play, overrides campaign.stage_id")
	_ = fs.Parse(args)

	// 1. Load config
	path := *cfgPath
	if p := os.Getenv(config.EnvPath); p != "" {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *stageID > 0 {
		cfg.Campaign.StageID = *stageID
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cmd, cfg.Campaign.StageID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Load content tables
	printSection("content")

	stages, err := data.LoadStageTable(cfg.Content.StageFile)
	if err != nil {
		return fmt.Errorf("load stage table: %w", err)
	}
	printStat("stages", stages.Count())

	waves, err := data.LoadWaveTable(cfg.Content.WaveFile, cfg.Content.Encoding)
	if err != nil {
		return fmt.Errorf("load wave table: %w", err)
	}
	printStat("waves", waves.Count())

	tiers, err := data.LoadTierTable(cfg.Content.TierFile)
	if err != nil {
		return fmt.Errorf("load tier table: %w", err)
	}
	printStat("tiers", tiers.Count())
	fmt.Println()

	// 4. Optional PostgreSQL
	var (
		repo    *persist.WaveRepo
		journal *persist.RunJournal
	)
	if cfg.Database.Enabled {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		err = persist.RunMigrations(dbCtx, db.Pool, log)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()

		repo = persist.NewWaveRepo(db)
		journal = persist.NewRunJournal(db, cfg.Database.JournalBatch, log)
	}

	if cmd == "import" {
		return importStages(ctx, repo, stages, waves)
	}
	return play(ctx, cfg, log, repo, journal, stages, waves, tiers)
}

// importStages copies every YAML stage and its waves into the database.
func importStages(ctx context.Context, repo *persist.WaveRepo, stages *data.StageTable, waves *data.WaveTable) error {
	if repo == nil {
		return fmt.Errorf("import: database.enabled is false")
	}
	printSection("import")
	for _, id := range stages.IDs() {
		st := stages.Get(id)
		entries := make([]data.WaveEntry, 0, len(st.WaveIDs))
		for _, wid := range st.WaveIDs {
			w := waves.Get(wid)
			if w == nil {
				return fmt.Errorf("import stage %d: wave %d not in wave table", id, wid)
			}
			entries = append(entries, *w)
		}
		if err := repo.ImportStage(ctx, st, entries); err != nil {
			return err
		}
		printStat(fmt.Sprintf("stage %d %s", id, st.Name), len(entries))
	}
	printOK("import complete")
	return nil
}

func play(ctx context.Context, cfg *config.Config, log *zap.Logger, repo *persist.WaveRepo, journal *persist.RunJournal,
	stages *data.StageTable, waves *data.WaveTable, tiers *data.TierTable) error {
	// 5. Resolve the stage
	st, plan, err := loadStage(ctx, cfg, repo, stages, waves)
	if err != nil {
		return err
	}

	// 6. Lua scripting engine
	var engine *scripting.Engine
	if cfg.Scripting.Enabled {
		engine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer engine.Close()
		printOK("Lua scripts loaded")
	}

	// 7. Session
	loader := template.NewYAMLLoader(cfg.Content.TemplateDir, log)
	deps := campaign.Deps{Loader: loader, Scripting: engine, Tiers: tiers, Log: log}
	if journal != nil {
		deps.Journal = journal
	}
	session, err := campaign.NewSession(cfg, deps)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer session.Close()

	if err := session.Start(ctx, st, plan); err != nil {
		return err
	}

	printSection("campaign")
	printReady(fmt.Sprintf("stage %d %s, %d waves", st.StageID, st.Name, len(plan)))
	printReady(fmt.Sprintf("game loop started (tick: %s, speed: %.1fx)", cfg.Campaign.TickRate, cfg.Campaign.TimeScale))
	fmt.Println()

	res, err := session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		log.Info("shutdown signal received, campaign abandoned")
	}
	printResult(res)

	session.Teardown()
	if n := loader.Outstanding(); n != 0 {
		log.Warn("templates still held after teardown", zap.Int("count", n))
	}
	return nil
}

func loadStage(ctx context.Context, cfg *config.Config, repo *persist.WaveRepo,
	stages *data.StageTable, waves *data.WaveTable) (*data.StageEntry, []wave.Descriptor, error) {
	id := cfg.Campaign.StageID
	if cfg.Content.Source == "database" {
		st, entries, err := repo.LoadStage(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		plan := make([]wave.Descriptor, len(entries))
		for i := range entries {
			plan[i] = entries[i].Descriptor()
		}
		return st, plan, nil
	}

	st := stages.Get(id)
	if st == nil {
		return nil, nil, fmt.Errorf("stage %d not in stage table", id)
	}
	plan, err := waves.Descriptors(st.WaveIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("stage %d: %w", id, err)
	}
	return st, plan, nil
}

func printResult(res stage.Result) {
	title := "stage " + res.State.String()
	printSection(title)
	printStat("cause", res.Cause)
	printStat("elapsed", res.Elapsed.Round(time.Millisecond))
	printStat("spawned", res.Spawned)
	printStat("kills", res.Kills)
	printStat("exp", res.Exp)
	printStat("remaining", res.Remaining)
	printStat("defense", fmt.Sprintf("%.0f%%", res.DefenseRatio*100))
	fmt.Println()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

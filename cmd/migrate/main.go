package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	dir     string
	name    string
	version string
}

type command struct {
	needsDB bool
	offline func(ctx context.Context, logg *logger.Logger, opts options) error
	online  func(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, opts options) error
}

var commands = map[string]command{
	"create":   {offline: createCmd},
	"validate": {offline: validateCmd},
	"up":       {needsDB: true, online: upCmd},
	"down":     {needsDB: true, online: downCmd},
	"status":   {needsDB: true, online: statusCmd},
	"version":  {needsDB: true, online: versionCmd},
}

func main() {
	_ = godotenv.Load()

	cmdName := flag.String("cmd", "up", "one of: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "migrations directory on disk; empty uses the migrations built into this binary")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cmd, ok := commands[*cmdName]
	if !ok {
		fail(context.Background(), logg, "unknown command", fmt.Errorf("unknown -cmd %q", *cmdName))
	}

	cfg, err := config.Load()
	if err != nil {
		fail(context.Background(), logg, "config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	source := opts.dir
	if source == "" {
		source = "embedded"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmdName,
		"source": source,
	})

	if !cmd.needsDB {
		if err := cmd.offline(ctx, logg, opts); err != nil {
			fail(ctx, logg, *cmdName+" failed", err)
		}
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "database", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.SourceFS(opts.dir))
	if err != nil {
		fail(ctx, logg, "migration source", err)
	}
	if err := cmd.online(ctx, logg, runner, opts); err != nil {
		fail(ctx, logg, *cmdName+" failed", err)
	}
}

func createCmd(ctx context.Context, logg *logger.Logger, opts options) error {
	if opts.name == "" {
		return fmt.Errorf("-name is required")
	}
	dir := opts.dir
	if dir == "" {
		dir = migrate.SourceDir
	}
	path, err := migrate.Create(dir, opts.name)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "path", path), "migration created")
	return nil
}

func validateCmd(ctx context.Context, logg *logger.Logger, opts options) error {
	if err := migrate.Validate(migrate.SourceFS(opts.dir)); err != nil {
		return err
	}
	logg.Info(ctx, "migrations valid")
	return nil
}

func upCmd(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, _ options) error {
	applied, err := runner.Up(ctx)
	logSteps(ctx, logg, applied)
	return err
}

func downCmd(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, _ options) error {
	reverted, err := runner.Down(ctx)
	logSteps(ctx, logg, reverted)
	return err
}

func statusCmd(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, _ options) error {
	states, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	for _, st := range states {
		state := "pending"
		if st.Applied {
			state = "applied"
		}
		fmt.Printf("%d\t%-8s\t%s\n", st.Version, state, st.Path)
	}
	return nil
}

func versionCmd(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, opts options) error {
	if opts.version == "" {
		current, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(current)
		return nil
	}

	target, err := strconv.ParseInt(opts.version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid -version %q: %w", opts.version, err)
	}
	moved, err := runner.MigrateTo(ctx, target)
	logSteps(ctx, logg, moved)
	return err
}

func logSteps(ctx context.Context, logg *logger.Logger, steps []migrate.Step) {
	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration_version": step.Version,
			"migration_path":    step.Path,
			"direction":         step.Direction,
			"empty":             step.Empty,
		}), "migration step")
	}
	if len(steps) == 0 {
		logg.Info(ctx, "nothing to migrate")
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fail(ctx context.Context, logg *logger.Logger, what string, err error) {
	logg.Error(ctx, what, err)
	os.Exit(1)
}

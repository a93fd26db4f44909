package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BaSui01/flowedit/config"
	"github.com/BaSui01/flowedit/internal/migration"

	"go.uber.org/zap"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// migrateCommand 描述一个迁移子命令；arg 表示是否需要版本号位置参数
type migrateCommand struct {
	arg bool
	run func(ctx context.Context, cli *migration.CLI, version int64) error
}

var migrateCommands = map[string]migrateCommand{
	"up":      {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunUp(ctx) }},
	"down":    {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunDown(ctx) }},
	"reset":   {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunDownAll(ctx) }},
	"status":  {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunStatus(ctx) }},
	"version": {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunVersion(ctx) }},
	"info":    {run: func(ctx context.Context, c *migration.CLI, _ int64) error { return c.RunInfo(ctx) }},
	"goto": {arg: true, run: func(ctx context.Context, c *migration.CLI, v int64) error {
		if v < 0 {
			return fmt.Errorf("version must not be negative")
		}
		return c.RunGoto(ctx, uint(v))
	}},
	"force": {arg: true, run: func(ctx context.Context, c *migration.CLI, v int64) error {
		return c.RunForce(ctx, int(v))
	}},
	"steps": {arg: true, run: func(ctx context.Context, c *migration.CLI, v int64) error {
		return c.RunSteps(ctx, int(v))
	}},
}

// runMigrate 处理 migrate 命令及其子命令
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printMigrateUsage()
		return
	}
	cmd, ok := migrateCommands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", name)
		printMigrateUsage()
		os.Exit(1)
	}

	rest := args[1:]
	var version int64
	if cmd.arg {
		if len(rest) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: flowedit migrate %s <n>\n", name)
			os.Exit(1)
		}
		v, err := strconv.ParseInt(rest[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid number: %s\n", rest[0])
			os.Exit(1)
		}
		version, rest = v, rest[1:]
	}

	fs := flag.NewFlagSet("migrate "+name, flag.ExitOnError)
	migrator, noColor, err := createMigrator(fs, rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	if noColor {
		cli.SetColor(false)
	}
	if err := cmd.run(context.Background(), cli, version); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", name, err)
		os.Exit(1)
	}
}

// createMigrator 根据命令行参数或配置文件创建迁移器
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, bool, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	verbose := fs.Bool("verbose", false, "Log migration steps")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	logger := zap.NewNop()
	if *verbose {
		logger = initLogger(config.DefaultLogConfig())
	}

	if *dbType != "" && *dbURL != "" {
		m, err := migration.NewMigratorFromURL(*dbType, *dbURL, logger)
		return m, *noColor, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load config: %w", err)
	}
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	return m, *noColor, err
}

// printMigrateUsage 打印 migrate 用法
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  flowedit migrate <subcommand> [options]

Subcommands:
  up         Apply all pending migrations
  down       Rollback the last migration
  steps <n>  Apply (n > 0) or rollback (n < 0) n migrations
  status     Show migration status
  version    Show current migration version
  info       Show database type, version and pending count
  goto <v>   Migrate to a specific version
  force <v>  Force set migration version (use with caution)
  reset      Rollback all migrations
  help       Show this help message

Options:
  --config <path>     Path to configuration file
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)
  --no-color          Disable colored output
  --verbose           Log migration steps

Examples:
  flowedit migrate up
  flowedit migrate up --config /etc/flowedit/config.yaml
  flowedit migrate status
  flowedit migrate goto 1
  flowedit migrate force 0`)
}

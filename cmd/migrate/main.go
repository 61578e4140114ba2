package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/tourism/backoffice/internal/infrastructure/config"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/infrastructure/migration"
	"github.com/tourism/backoffice/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("invalid arguments")

// session is what a command sees: its arguments, the logger and, for
// database commands, an open migrator
type session struct {
	args []string
	dir  string
	log  *zap.Logger
	m    *migration.Migrator
}

type command struct {
	usage    string
	summary  string
	database bool
	run      func(s *session) error
}

var commands = map[string]command{
	"up": {usage: "up", summary: "Apply all pending migrations", database: true,
		run: func(s *session) error { return s.m.Up() }},
	"down": {usage: "down", summary: "Roll back all migrations", database: true,
		run: func(s *session) error { return s.m.Down() }},
	"step": {usage: "step <n>", summary: "Apply n migrations (positive=up, negative=down)", database: true,
		run: runStep},
	"goto": {usage: "goto <version>", summary: "Migrate to a specific version", database: true,
		run: runGoTo},
	"version": {usage: "version", summary: "Show current migration version", database: true,
		run: runVersion},
	"force": {usage: "force <version>", summary: "Force set migration version (use with caution)", database: true,
		run: runForce},
	"drop": {usage: "drop -confirm", summary: "Drop all database objects", database: true,
		run: runDrop},
	"create": {usage: "create <name> [desc]", summary: "Create the next migration file pair",
		run: runCreate},
	"list": {usage: "list", summary: "List available migrations",
		run: runList},
	"validate": {usage: "validate", summary: "Check every migration has an up and a down file",
		run: runValidate},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    "migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	s := &session{args: args[1:], dir: *dir, log: log}
	if cmd.database {
		closeFn, err := s.open()
		if err != nil {
			log.Fatal("Failed to open migrator", zap.Error(err))
		}
		defer closeFn()
	}

	if err := cmd.run(s); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error(), zap.String("usage", "migrate "+cmd.usage))
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

// open connects to the configured database and builds a migrator over the
// embedded set or the -path directory
func (s *session) open() (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if s.dir != "" {
		s.m, err = migration.NewFromDir(db, s.dir, s.log)
	} else {
		s.m, err = migration.NewEmbedded(db, migrations.FS, s.log)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return func() {
		_ = s.m.Close()
		_ = db.Close()
	}, nil
}

func (s *session) source() fs.FS {
	if s.dir == "" {
		return migrations.FS
	}
	return os.DirFS(s.dir)
}

// intArg parses the first argument, naming it in the usage error
func (s *session) intArg(what string) (int, error) {
	if len(s.args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(s.args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, s.args[0])
	}
	return n, nil
}

func runStep(s *session) error {
	n, err := s.intArg("step count")
	if err != nil {
		return err
	}
	return s.m.Steps(n)
}

func runGoTo(s *session) error {
	v, err := s.intArg("version")
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: version must not be negative", errUsage)
	}
	return s.m.GoTo(uint(v))
}

func runForce(s *session) error {
	v, err := s.intArg("version")
	if err != nil {
		return err
	}
	return s.m.Force(v)
}

func runVersion(s *session) error {
	status, err := s.m.Status()
	if err != nil {
		return err
	}
	if !status.Applied {
		s.log.Info("No migrations applied")
		return nil
	}
	s.log.Info("Current migration version",
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
	)
	return nil
}

func runDrop(s *session) error {
	if !slices.Contains(s.args, "-confirm") && !slices.Contains(s.args, "--confirm") {
		return fmt.Errorf("%w: drop needs -confirm", errUsage)
	}
	return s.m.Drop()
}

func runCreate(s *session) error {
	if len(s.args) == 0 {
		return fmt.Errorf("%w: migration name required", errUsage)
	}
	dir := s.dir
	if dir == "" {
		dir = defaultMigrationsDir
	}
	description := strings.Join(s.args[1:], " ")

	mf, err := migration.CreateMigration(dir, s.args[0], description)
	if err != nil {
		return err
	}
	s.log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(s *session) error {
	entries, err := migration.Scan(s.source())
	if err != nil {
		return err
	}
	for _, e := range entries {
		state := "ok"
		if !e.HasUp || !e.HasDown {
			state = "incomplete"
		}
		fmt.Printf("  %06d_%-40s %s\n", e.Version, e.Name, state)
	}
	return nil
}

func runValidate(s *session) error {
	if err := migration.Validate(s.source()); err != nil {
		return err
	}
	s.log.Info("Migrations are complete")
	return nil
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString("Tourism back office database migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-22s%s\n", commands[name].usage, commands[name].summary)
	}
	b.WriteString("\nFlags:\n")
	b.WriteString("  -path string          Read migrations from a directory (default: embedded set)\n")
	b.WriteString("  -log-level string     Log level: debug, info, warn, error (default: info)\n")
	b.WriteString("\nEnvironment Variables:\n")
	b.WriteString("  TOUR_DATABASE_HOST, TOUR_DATABASE_PORT, TOUR_DATABASE_USER,\n")
	b.WriteString("  TOUR_DATABASE_PASSWORD, TOUR_DATABASE_DBNAME, TOUR_DATABASE_SSLMODE\n")
	fmt.Fprint(os.Stderr, b.String())
}

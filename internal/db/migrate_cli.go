package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrUsage is returned by RunMigrateCommand for malformed arguments. The help
// text has already been written when it is returned.
var ErrUsage = errors.New("invalid migrate usage")

// RunMigrateCommand handles the 'migrate' subcommand against the history
// database at dbPath, writing human-readable output to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return ErrUsage
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Open without migrating; the subcommand manages the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")
		return printVersion(database, out)

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")
		return printVersion(database, out)

	case "version", "status":
		if err := printVersion(database, out); err != nil {
			return err
		}
		latest, err := LatestMigrationVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Latest available: %d\n", latest)
		return nil

	case "force":
		if len(args) < 2 {
			fmt.Fprintln(out, "Usage: evacsim migrate force <version_number>")
			return ErrUsage
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", v)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return ErrUsage
	}
}

func printVersion(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(out, "⚠️  Database is in a dirty state. Run: evacsim migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `History Database Migration Commands

Usage: evacsim migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  version         Show current and latest migration version
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Options:
  -db <path>      Path to the history database (default: evacsim.db)
`)
}

package db

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	database, err := NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		version, dirty, _ := database.MigrateVersion()
		fmt.Printf("Migrations applied. Current version: %d (dirty: %v)\n", version, dirty)

	case "down":
		if err := database.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		version, dirty, _ := database.MigrateVersion()
		fmt.Printf("Rolled back one migration. Current version: %d (dirty: %v)\n", version, dirty)

	case "status":
		version, dirty, err := database.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		fmt.Printf("Current version: %d\nDirty: %v\n", version, dirty)

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: dataset migrate force <version_number>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version number %q: %v", args[1], err)
		}
		if err := database.MigrateForce(version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("Forced migration version to %d\n", version)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: dataset migrate <action>

Actions:
  up              Apply all pending migrations
  down            Roll back the most recent migration
  status          Show current migration version and dirty state
  force <ver>     Force the version (recover from a dirty state)
  help            Show this help`)
}

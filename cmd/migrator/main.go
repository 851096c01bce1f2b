package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var storagePath, migrationPath string
	var down bool
	flag.StringVar(&storagePath, "storage", os.Getenv("STORAGE_DSN"), "postgres connection string")
	flag.StringVar(&migrationPath, "migrations", "./migrations", "path to migrations")
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	flag.Parse()

	if storagePath == "" {
		panic("storage path is required")
	}

	if err := run(storagePath, migrationPath, down); err != nil {
		panic(err)
	}
}

func run(storagePath, migrationPath string, down bool) error {
	m, err := migrate.New("file://"+migrationPath, storagePath)
	if err != nil {
		return errors.Wrap(err, "migrate.New failed: ")
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no migrations to apply")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "migration failed: ")
	}
	fmt.Println("migrations applied")
	return nil
}

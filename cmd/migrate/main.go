package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/ignite/sendgrid-insights/internal/migrations"
)

const usage = `usage: migrate [up | down [n] | force <version> | version]`

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	m, err := migrations.New(db)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps < 1 {
				log.Fatal(usage)
			}
		}
		err = m.Steps(-steps)
	case "force":
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		v, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			log.Fatal(usage)
		}
		err = m.Force(v)
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			log.Fatal(verr)
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
		return
	default:
		log.Fatal(usage)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("%s: %v", cmd, err)
	}
	log.Println("Migrations complete")
}

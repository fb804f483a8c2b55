package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/eventnexus/autopilot/internal/repository/postgres"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		}
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

	if listOnly {
		if err := listTables(db); err != nil {
			log.Fatal(err)
		}
		return
	}

	migrations, err := postgres.Migrations()
	if err != nil {
		log.Fatalf("read migrations: %v", err)
	}

	var okCount, errCount int
	for _, m := range migrations {
		fmt.Printf("  %s ... ", m.Name)

		tx, err := db.Begin()
		if err != nil {
			fmt.Printf("BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			fmt.Printf("ERROR: %v\n", err)
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			fmt.Printf("COMMIT ERROR: %v\n", err)
			errCount++
			continue
		}
		fmt.Println("OK")
		okCount++
	}
	log.Printf("Done: %d OK, %d errors", okCount, errCount)
	if errCount > 0 {
		os.Exit(1)
	}
	log.Println("Migrations complete")
}

func listTables(db *sql.DB) error {
	rows, err := db.Query(`SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND (tablename LIKE 'campaign%' OR tablename LIKE 'autonomous_%'
			OR tablename IN ('optimization_opportunities', 'autopilot_runs'))
		ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}

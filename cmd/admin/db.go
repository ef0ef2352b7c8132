package main

import (
	"database/sql"
	"flag"
	"log"

	_ "modernc.org/sqlite"
)

// cmdDB queries the lifecycle index without going through the server.
func cmdDB(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	path := fs.String("path", "data/index.db", "sqlite index path")
	table := fs.String("table", "lifecycle", "table: lifecycle, flushes or catalogs")
	world := fs.String("world", "", "filter by world (lifecycle and flushes)")
	limit := fs.Int("limit", 50, "max rows, newest first")
	fs.Parse(args)

	db, err := sql.Open("sqlite", *path+"?mode=ro")
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer db.Close()

	switch *table {
	case "lifecycle":
		queryLifecycle(db, *world, *limit)
	case "flushes":
		queryFlushes(db, *world, *limit)
	case "catalogs":
		queryCatalogs(db)
	default:
		log.Fatalf("unknown table %q", *table)
	}
}

type lifecycleOut struct {
	TS      string `json:"ts"`
	Event   string `json:"event"`
	World   string `json:"world"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Z       int    `json:"z"`
	Variant string `json:"variant"`
}

func queryLifecycle(db *sql.DB, world string, limit int) {
	q := `SELECT ts, event, world, x, y, z, COALESCE(variant, '') FROM lifecycle`
	var args []any
	if world != "" {
		q += ` WHERE world = ?`
		args = append(args, world)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		log.Fatalf("query lifecycle: %v", err)
	}
	defer rows.Close()

	var out []lifecycleOut
	for rows.Next() {
		var r lifecycleOut
		if err := rows.Scan(&r.TS, &r.Event, &r.World, &r.X, &r.Y, &r.Z, &r.Variant); err != nil {
			log.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows: %v", err)
	}
	printJSON(out)
}

type flushOut struct {
	TS    string `json:"ts"`
	World string `json:"world"`
	RX    int    `json:"rx"`
	RZ    int    `json:"rz"`
}

func queryFlushes(db *sql.DB, world string, limit int) {
	q := `SELECT ts, world, rx, rz FROM region_flushes`
	var args []any
	if world != "" {
		q += ` WHERE world = ?`
		args = append(args, world)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		log.Fatalf("query region_flushes: %v", err)
	}
	defer rows.Close()

	var out []flushOut
	for rows.Next() {
		var r flushOut
		if err := rows.Scan(&r.TS, &r.World, &r.RX, &r.RZ); err != nil {
			log.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows: %v", err)
	}
	printJSON(out)
}

type catalogOut struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func queryCatalogs(db *sql.DB) {
	rows, err := db.Query(`SELECT name, digest, updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		log.Fatalf("query catalogs: %v", err)
	}
	defer rows.Close()

	var out []catalogOut
	for rows.Next() {
		var r catalogOut
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			log.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows: %v", err)
	}
	printJSON(out)
}

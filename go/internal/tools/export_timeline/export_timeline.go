package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/ctfsession/go/internal/dbconfig"
)

// Prints the archived score series of one game as CSV:
//
//	updated_at,team_id,name,rank,score
//
// Usage: export_timeline <game-id>
func main() {
	ctx := context.Background()

	// 1) Parse the game id
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: export_timeline <game-id>")
		os.Exit(2)
	}
	gameID, err := strconv.Atoi(os.Args[1])
	if err != nil || gameID <= 0 {
		fmt.Fprintf(os.Stderr, "invalid game id %q\n", os.Args[1])
		os.Exit(2)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Stream one row per team per archived snapshot
	rows, err := pool.Query(ctx, `
        SELECT s.updated_at, t.team_id, t.name, t.rank, t.score
        FROM scoreboard_snapshots s
        JOIN snapshot_teams t ON t.snapshot_id = s.id
        WHERE s.game_id = $1
        ORDER BY s.updated_at, t.rank
    `, gameID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query snapshots: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"updated_at", "team_id", "name", "rank", "score"})

	count := 0
	for rows.Next() {
		var (
			updatedAt time.Time
			teamID    int32
			name      string
			rank      int32
			score     int32
		)
		if err := rows.Scan(&updatedAt, &teamID, &name, &rank, &score); err != nil {
			fmt.Fprintf(os.Stderr, "scan row: %v\n", err)
			os.Exit(1)
		}
		if err := w.Write([]string{
			updatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(int(teamID)),
			name,
			strconv.Itoa(int(rank)),
			strconv.Itoa(int(score)),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
			os.Exit(1)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read rows: %v\n", err)
		os.Exit(1)
	}

	// 4) Flush and summarise
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "flush csv: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "exported %d rows for game %d\n", count, gameID)
}

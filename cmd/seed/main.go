package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type achievementSeed struct {
	category  string
	level     int
	threshold int
	bonus     float64
	nameEn    string
	nameSq    string
}

// The default product catalog. Existing (category, level) rows are left
// untouched, so the seed is safe to rerun.
var catalog = []achievementSeed{
	{"reviews", 1, 1, 10, "First Review", "Recensioni i Parë"},
	{"reviews", 2, 10, 25, "Food Critic", "Kritik Ushqimi"},
	{"reviews", 3, 50, 100, "Review Master", "Mjeshtër Recensionesh"},
	{"visits", 1, 1, 10, "First Visit", "Vizita e Parë"},
	{"visits", 2, 10, 25, "Regular Guest", "Mysafir i Rregullt"},
	{"visits", 3, 50, 100, "Restaurant Explorer", "Eksplorues Restorantesh"},
	{"receipts", 1, 1, 10, "First Receipt", "Fatura e Parë"},
	{"receipts", 2, 10, 30, "Loyal Spender", "Shpenzues Besnik"},
	{"receipts", 3, 50, 120, "Big Spender", "Shpenzues i Madh"},
	{"cuisines", 1, 3, 15, "Taste Tester", "Provues Shijesh"},
	{"cuisines", 2, 7, 40, "Cuisine Hopper", "Udhëtar Kuzhinash"},
	{"cuisines", 3, 15, 150, "World Palate", "Shijues Botëror"},
	{"referrals", 1, 1, 20, "First Referral", "Rekomandimi i Parë"},
	{"referrals", 2, 5, 60, "Community Builder", "Ndërtues Komuniteti"},
	{"referrals", 3, 20, 200, "Ambassador", "Ambasador"},
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	seeded := 0
	for i, a := range catalog {
		tag, err := db.Exec(ctx,
			`INSERT INTO achievements (category, level, threshold, bonus_points, name_en, name_sq, active, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6, true, $7)
			 ON CONFLICT (category, level) DO NOTHING`,
			a.category, a.level, a.threshold, a.bonus, a.nameEn, a.nameSq, i,
		)
		if err != nil {
			log.Fatalf("seed achievement %s/%d: %v", a.category, a.level, err)
		}
		seeded += int(tag.RowsAffected())
	}
	fmt.Printf("seeded %d achievements\n", seeded)

	// one open demo cycle covering the current month, unless one exists
	var open int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM leaderboard_cycles WHERE status = 'OPEN'`,
	).Scan(&open); err != nil {
		log.Fatalf("count open cycles: %v", err)
	}
	if open > 0 {
		fmt.Println("open cycle already present, skipping")
		return
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var cycleID int64
	err = db.QueryRow(ctx,
		`INSERT INTO leaderboard_cycles (start_date, end_date, status, created_by)
		 VALUES ($1, $2, 'OPEN', 'seed') RETURNING id`,
		start, end,
	).Scan(&cycleID)
	if err != nil {
		log.Fatalf("seed cycle: %v", err)
	}
	fmt.Printf("opened cycle %d (%s to %s)\n", cycleID, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

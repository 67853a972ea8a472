package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/config"
	"github.com/dinver-app/dinver-sub009/internal/domain"
	"github.com/dinver-app/dinver-sub009/internal/repository"
	"github.com/dinver-app/dinver-sub009/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	entries, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(migDir, name))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	applyMigrations(t, db)
	return db
}

func buildEngine(t *testing.T, db *pgxpool.Pool) (*service.Engine, *service.AwardService) {
	t.Helper()
	return buildEngineWith(t, db, domain.DefaultRegistry())
}

func buildEngineWith(t *testing.T, db *pgxpool.Pool, registry *domain.ActionRegistry) (*service.Engine, *service.AwardService) {
	t.Helper()
	ledger := repository.NewLedgerRepository(db)
	balances := repository.NewBalanceRepository(db)
	achievements := repository.NewAchievementRepository(db)

	awards := service.NewAwardService(ledger, balances, nil, []float64{100, 250, 500}, 3)
	achSvc, err := service.NewAchievementService(achievements, registry)
	require.NoError(t, err)

	guard := service.NewIdempotencyGuard(ledger)
	return service.NewEngine(db, guard, awards, achSvc, registry, 8), awards
}

func TestEngine_AwardIdempotency(t *testing.T) {
	db := connect(t)
	defer db.Close()

	engine, _ := buildEngine(t, db)
	ctx := context.Background()
	userID := time.Now().UnixNano() % 1_000_000_000

	ev := &domain.ActionEvent{
		ActionType:     domain.ActionReviewAdd,
		UserID:         userID,
		Points:         10,
		IdempotencyKey: fmt.Sprintf("it-rev-%d", userID),
	}

	first, err := engine.SubmitActionEvent(ctx, ev)
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	require.Equal(t, 10.0, first.Entry.Points)

	second, err := engine.SubmitActionEvent(ctx, ev)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Entry.ID, second.Entry.ID)
	require.Equal(t, first.TotalPoints, second.TotalPoints)
}

func TestEngine_ConcurrentSameKey(t *testing.T) {
	db := connect(t)
	defer db.Close()

	engine, _ := buildEngine(t, db)
	ctx := context.Background()
	userID := time.Now().UnixNano() % 1_000_000_000

	ev := &domain.ActionEvent{
		ActionType:     domain.ActionVisitQR,
		UserID:         userID,
		Points:         5,
		IdempotencyKey: fmt.Sprintf("it-race-%d", userID),
	}

	const workers = 8
	var wg sync.WaitGroup
	accepted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.SubmitActionEvent(ctx, ev)
			if err != nil {
				return
			}
			accepted <- !res.Duplicate
		}()
	}
	wg.Wait()
	close(accepted)

	fresh := 0
	for ok := range accepted {
		if ok {
			fresh++
		}
	}
	require.Equal(t, 1, fresh, "exactly one submission may land the entry")

	var sum float64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	require.NoError(t, err)
	require.Equal(t, 5.0, sum)
}

func TestAchievement_UnlockExactlyOnce(t *testing.T) {
	db := connect(t)
	defer db.Close()

	ctx := context.Background()
	nonce := time.Now().UnixNano()
	userID := nonce % 1_000_000_000
	category := fmt.Sprintf("it-cat-%d", nonce)
	action := fmt.Sprintf("it-action-%d", nonce)

	var achID int64
	err := db.QueryRow(ctx,
		`INSERT INTO achievements (category, level, threshold, bonus_points, name_en)
		 VALUES ($1, 1, 5, 20, 'Integration Explorer')
		 RETURNING id`,
		category,
	).Scan(&achID)
	require.NoError(t, err)

	registry := domain.DefaultRegistry()
	registry.Register(action, domain.ActionMapping{Categories: []string{category}})
	engine, _ := buildEngineWith(t, db, registry)

	var fifth *service.SubmitResult
	for i := 1; i <= 6; i++ {
		res, err := engine.SubmitActionEvent(ctx, &domain.ActionEvent{
			ActionType:     action,
			UserID:         userID,
			Points:         10,
			IdempotencyKey: fmt.Sprintf("it-unlock-%d-%d", nonce, i),
		})
		require.NoError(t, err)
		require.False(t, res.Duplicate)

		if i == 5 {
			fifth = res
			require.Len(t, res.Unlocked, 1, "threshold crossing must report the unlock")
			require.Equal(t, achID, res.Unlocked[0].ID)
		} else {
			require.Empty(t, res.Unlocked)
		}
	}
	require.NotNil(t, fifth)

	// progress is clamped at the threshold and flipped exactly once
	var progress int
	var achieved bool
	var achievedAt *time.Time
	err = db.QueryRow(ctx,
		`SELECT progress, achieved, achieved_at FROM achievement_progress
		 WHERE user_id = $1 AND achievement_id = $2`,
		userID, achID,
	).Scan(&progress, &achieved, &achievedAt)
	require.NoError(t, err)
	require.Equal(t, 5, progress)
	require.True(t, achieved)
	require.NotNil(t, achievedAt)

	// the bonus landed as exactly one ledger entry under its fixed key
	var bonusEntries int
	var bonusPoints float64
	err = db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(points), 0) FROM ledger_entries
		 WHERE user_id = $1 AND action_type = $2 AND idempotency_key = $3`,
		userID, domain.ActionAchievementUnlocked, service.UnlockKey(userID, achID),
	).Scan(&bonusEntries, &bonusPoints)
	require.NoError(t, err)
	require.Equal(t, 1, bonusEntries)
	require.Equal(t, 20.0, bonusPoints)

	// 6 x 10 organic plus the one-time 20 bonus
	var sum float64
	err = db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	require.NoError(t, err)
	require.Equal(t, 80.0, sum)

	// replaying the crossing event changes nothing
	replay, err := engine.SubmitActionEvent(ctx, &domain.ActionEvent{
		ActionType:     action,
		UserID:         userID,
		Points:         10,
		IdempotencyKey: fmt.Sprintf("it-unlock-%d-%d", nonce, 5),
	})
	require.NoError(t, err)
	require.True(t, replay.Duplicate)

	err = db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	require.NoError(t, err)
	require.Equal(t, 80.0, sum)
}

func TestReferral_PaysEachSideOnce(t *testing.T) {
	db := connect(t)
	defer db.Close()

	_, awards := buildEngine(t, db)
	referralRepo := repository.NewReferralRepository(db)

	payouts := map[domain.ReferralTrigger]config.ReferralPayout{
		domain.TriggerRegistration: {Referrer: 50, Referred: 25},
	}
	referrals := service.NewReferralService(db, referralRepo, awards, payouts, 3)

	ctx := context.Background()
	base := time.Now().UnixNano() % 1_000_000_000
	referrer, referred := base+1, base+2

	res, err := referrals.OnTrigger(ctx, referrer, referred, domain.TriggerRegistration)
	require.NoError(t, err)
	require.True(t, res.ReferrerRewarded)
	require.True(t, res.ReferredRewarded)

	replay, err := referrals.OnTrigger(ctx, referrer, referred, domain.TriggerRegistration)
	require.NoError(t, err)
	require.False(t, replay.ReferrerRewarded)
	require.False(t, replay.ReferredRewarded)

	// a second referrer for the same referred user is rejected
	_, err = referrals.OnTrigger(ctx, referrer+7, referred, domain.TriggerRegistration)
	require.ErrorIs(t, err, domain.ErrReferrerMismatch)
}

func TestReferral_ConcurrentOverlappingTriggers(t *testing.T) {
	db := connect(t)
	defer db.Close()

	_, awards := buildEngine(t, db)
	referralRepo := repository.NewReferralRepository(db)

	payouts := map[domain.ReferralTrigger]config.ReferralPayout{
		domain.TriggerRegistration: {Referrer: 50, Referred: 25},
	}
	referrals := service.NewReferralService(db, referralRepo, awards, payouts, 3)

	ctx := context.Background()
	base := time.Now().UnixNano() % 1_000_000_000
	alice, bob := base+1, base+2

	// two triggers locking the same balance rows in opposite order; the
	// deadlock loser must be retried until both land
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	pairs := [][2]int64{{alice, bob}, {bob, alice}}
	for _, p := range pairs {
		wg.Add(1)
		go func(referrer, referred int64) {
			defer wg.Done()
			_, err := referrals.OnTrigger(ctx, referrer, referred, domain.TriggerRegistration)
			errs <- err
		}(p[0], p[1])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// each user was paid once as referrer (50) and once as referred (25)
	for _, userID := range []int64{alice, bob} {
		var sum float64
		err := db.QueryRow(ctx,
			`SELECT COALESCE(SUM(points), 0) FROM ledger_entries
			 WHERE user_id = $1 AND action_type = $2`,
			userID, domain.ActionReferralBonus,
		).Scan(&sum)
		require.NoError(t, err)
		require.Equal(t, 75.0, sum)
	}
}

func TestCycle_CloseIsSingleShot(t *testing.T) {
	db := connect(t)
	defer db.Close()

	cycleRepo := repository.NewCycleRepository(db)
	cycles := service.NewCycleService(db, cycleRepo, 3)

	ctx := context.Background()
	start := time.Now().UTC().Add(-48 * time.Hour)
	end := time.Now().UTC().Add(-time.Hour)

	cycle, err := cycles.Open(ctx, start, end, "test")
	require.NoError(t, err)

	closed, err := cycles.Close(ctx, cycle.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CycleStatusClosed, closed.Cycle.Status)

	again, err := cycles.Close(ctx, cycle.ID)
	require.ErrorIs(t, err, domain.ErrCycleAlreadyClosed)
	require.Equal(t, len(closed.Winners), len(again.Winners))
}

func TestReconciler_RepairsDrift(t *testing.T) {
	db := connect(t)
	defer db.Close()

	engine, _ := buildEngine(t, db)
	ledger := repository.NewLedgerRepository(db)
	balances := repository.NewBalanceRepository(db)
	reconciler := service.NewReconciler(db, ledger, balances, nil, []float64{100, 250, 500})

	ctx := context.Background()
	userID := time.Now().UnixNano() % 1_000_000_000

	_, err := engine.SubmitActionEvent(ctx, &domain.ActionEvent{
		ActionType:     domain.ActionReceiptApproved,
		UserID:         userID,
		Points:         30,
		IdempotencyKey: fmt.Sprintf("it-drift-%d", userID),
	})
	require.NoError(t, err)

	// inject drift behind the engine's back
	_, err = db.Exec(ctx,
		`UPDATE balances SET total_points = total_points + 999 WHERE user_id = $1`,
		userID,
	)
	require.NoError(t, err)

	_, err = reconciler.Run(ctx, 1000)
	require.NoError(t, err)

	b, err := balances.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 30.0, b.TotalPoints)
}

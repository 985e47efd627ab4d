package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	walletTable      = "wallet"
	betTypeTable     = "bet_type_stats"
	gameRecordsTable = "game_records"
	walletID         = 1
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresRepository struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
}

// NewPostgresRepository connects to the database and applies the migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	pool, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := migratePostgres(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, err
	}

	txManager, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create transaction manager: %v", err)
	}

	return &PostgresRepository{
		pool:      pool,
		txManager: txManager,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return pool, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool, migrations string) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name() < dir[j].Name() })

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}
		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}
		if _, err := pool.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

// SaveGameData writes the wallet, the bet type counters and the history in one transaction.
func (r *PostgresRepository) SaveGameData(ctx context.Context, data *history.SaveData) error {
	return r.txManager.Do(ctx, func(ctx context.Context) error {
		if err := r.saveWallet(ctx, models.WalletFromSaveData(data)); err != nil {
			return err
		}
		if err := r.saveBetTypeStats(ctx, models.BetTypeStatsFromSaveData(data)); err != nil {
			return err
		}
		return r.saveGameRecords(ctx, data)
	})
}

func (r *PostgresRepository) saveWallet(ctx context.Context, w models.Wallet) error {
	query := psql.Insert(walletTable).
		Columns("id", "balance", "game_counter", "total_wins", "total_losses", "total_wagered", "total_paid").
		Values(walletID, w.Balance, w.GameCounter, w.TotalWins, w.TotalLosses, w.TotalWagered, w.TotalPaid).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			game_counter = EXCLUDED.game_counter,
			total_wins = EXCLUDED.total_wins,
			total_losses = EXCLUDED.total_losses,
			total_wagered = EXCLUDED.total_wagered,
			total_paid = EXCLUDED.total_paid,
			updated_at = now()`)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build wallet query: %v", err)
	}

	conn := trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, r.pool)
	if _, err := conn.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to save wallet: %v", err)
	}
	return nil
}

func (r *PostgresRepository) saveBetTypeStats(ctx context.Context, stats []models.BetTypeStat) error {
	query := psql.Insert(betTypeTable).Columns("bet_type", "wins", "losses")
	for _, stat := range stats {
		query = query.Values(stat.BetType, stat.Wins, stat.Losses)
	}
	query = query.Suffix("ON CONFLICT (bet_type) DO UPDATE SET wins = EXCLUDED.wins, losses = EXCLUDED.losses")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build bet type stats query: %v", err)
	}

	conn := trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, r.pool)
	if _, err := conn.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to save bet type stats: %v", err)
	}
	return nil
}

func (r *PostgresRepository) saveGameRecords(ctx context.Context, data *history.SaveData) error {
	conn := trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, r.pool)

	oldest := data.GameCounter
	if len(data.History) > 0 {
		query := psql.Insert(gameRecordsTable).
			Columns("id", "winning_number", "is_win", "bet_amount", "win_amount", "bets", "played_at")
		for _, record := range data.History {
			row, err := models.GameRecordFromHistory(record)
			if err != nil {
				return err
			}
			query = query.Values(row.ID, row.WinningNumber, row.IsWin, row.BetAmount, row.WinAmount, row.Bets, row.Timestamp)
			oldest = min(oldest, record.ID)
		}
		query = query.Suffix("ON CONFLICT (id) DO NOTHING")

		sqlStr, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build game records query: %v", err)
		}
		if _, err := conn.Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("failed to insert game records: %v", err)
		}
	}

	sqlStr, args, err := psql.Delete(gameRecordsTable).
		Where(sq.Or{sq.Lt{"id": oldest}, sq.GtOrEq{"id": data.GameCounter}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build trim query: %v", err)
	}
	if _, err := conn.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to trim game records: %v", err)
	}
	return nil
}

func (r *PostgresRepository) LoadSaveData(ctx context.Context) (*history.SaveData, error) {
	conn := trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, r.pool)

	sqlStr, args, err := psql.Select("balance", "game_counter", "total_wins", "total_losses", "total_wagered", "total_paid").
		From(walletTable).
		Where(sq.Eq{"id": walletID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet query: %v", err)
	}

	var w models.Wallet
	if err := conn.QueryRow(ctx, sqlStr, args...).Scan(&w.Balance, &w.GameCounter, &w.TotalWins, &w.TotalLosses, &w.TotalWagered, &w.TotalPaid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan wallet: %v", err)
	}

	sqlStr, args, err = psql.Select("bet_type", "wins", "losses").From(betTypeTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bet type stats query: %v", err)
	}
	statRows, err := conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet type stats: %v", err)
	}
	stats, err := pgx.CollectRows(statRows, func(row pgx.CollectableRow) (models.BetTypeStat, error) {
		var stat models.BetTypeStat
		err := row.Scan(&stat.BetType, &stat.Wins, &stat.Losses)
		return stat, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bet type stats: %v", err)
	}

	sqlStr, args, err = psql.Select("id", "winning_number", "is_win", "bet_amount", "win_amount", "bets", "played_at").
		From(gameRecordsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build game records query: %v", err)
	}
	recordRows, err := conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %v", err)
	}
	records, err := pgx.CollectRows(recordRows, func(row pgx.CollectableRow) (models.GameRecord, error) {
		var r models.GameRecord
		err := row.Scan(&r.ID, &r.WinningNumber, &r.IsWin, &r.BetAmount, &r.WinAmount, &r.Bets, &r.Timestamp)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan game records: %v", err)
	}

	data, err := models.SaveData(w, stats, records)
	if err != nil {
		return nil, &ErrCorrupt{Err: err}
	}
	return data, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := migrate(ctx, db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, migrations string) error {
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

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGameData(ctx context.Context, data *history.SaveData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	w := models.WalletFromSaveData(data)
	q := `
	INSERT OR REPLACE INTO wallet (id, balance, game_counter, total_wins, total_losses, total_wagered, total_paid, updated_at)
	VALUES (1, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = tx.ExecContext(ctx, q, w.Balance, w.GameCounter, w.TotalWins, w.TotalLosses, w.TotalWagered, w.TotalPaid, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save wallet: %v", err)
	}

	for _, stat := range models.BetTypeStatsFromSaveData(data) {
		q := `
		INSERT OR REPLACE INTO bet_type_stats (bet_type, wins, losses)
		VALUES (?, ?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, stat.BetType, stat.Wins, stat.Losses); err != nil {
			return fmt.Errorf("failed to save bet type stats: %v", err)
		}
	}

	oldest := data.GameCounter
	for _, record := range data.History {
		row, err := models.GameRecordFromHistory(record)
		if err != nil {
			return err
		}
		q := `
		INSERT OR IGNORE INTO game_records (id, winning_number, is_win, bet_amount, win_amount, bets, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, row.ID, row.WinningNumber, row.IsWin, row.BetAmount, row.WinAmount, string(row.Bets), row.Timestamp); err != nil {
			return fmt.Errorf("failed to insert game record: %v", err)
		}
		oldest = min(oldest, record.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM game_records WHERE id < ? OR id >= ?;`, oldest, data.GameCounter); err != nil {
		return fmt.Errorf("failed to trim game records: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadSaveData(ctx context.Context) (*history.SaveData, error) {
	q := `
	SELECT balance, game_counter, total_wins, total_losses, total_wagered, total_paid FROM wallet WHERE id = 1;
	`
	var w models.Wallet
	if err := r.db.QueryRowContext(ctx, q).Scan(&w.Balance, &w.GameCounter, &w.TotalWins, &w.TotalLosses, &w.TotalWagered, &w.TotalPaid); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan wallet: %v", err)
	}

	statRows, err := r.db.QueryContext(ctx, `SELECT bet_type, wins, losses FROM bet_type_stats;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet type stats: %v", err)
	}
	defer statRows.Close()

	var stats []models.BetTypeStat
	for statRows.Next() {
		var stat models.BetTypeStat
		if err := statRows.Scan(&stat.BetType, &stat.Wins, &stat.Losses); err != nil {
			return nil, fmt.Errorf("failed to scan bet type stats: %v", err)
		}
		stats = append(stats, stat)
	}
	if err := statRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bet type stats: %v", err)
	}

	recordRows, err := r.db.QueryContext(ctx, `
	SELECT id, winning_number, is_win, bet_amount, win_amount, bets, played_at FROM game_records ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %v", err)
	}
	defer recordRows.Close()

	var records []models.GameRecord
	for recordRows.Next() {
		var row models.GameRecord
		var bets string
		if err := recordRows.Scan(&row.ID, &row.WinningNumber, &row.IsWin, &row.BetAmount, &row.WinAmount, &bets, &row.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %v", err)
		}
		row.Bets = []byte(bets)
		records = append(records, row)
	}
	if err := recordRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game records: %v", err)
	}

	data, err := models.SaveData(w, stats, records)
	if err != nil {
		return nil, &ErrCorrupt{Err: err}
	}
	return data, nil
}

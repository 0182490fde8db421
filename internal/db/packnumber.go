package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pack numbers form one monotonic sequence per carrier account, derived from
// the maximum previously issued number. Issuance runs in a serializable
// transaction so two concurrent shipment creations can never claim the same
// number; losers of the race get SQLSTATE 40001 and retry the whole
// read-increment-write.

const (
	packNumberDigits  = 7
	packNumberRetries = 5

	serializationFailureCode = "40001"
)

// ErrPackNumberAssigned means the order already carries a pack number;
// assignment happens at most once per order.
var ErrPackNumberAssigned = errors.New("order already has a pack number")

// FormatPackNumber renders the carrier shipment identifier V<account>E<seq>.
func FormatPackNumber(accountID, sequence int) string {
	return fmt.Sprintf("%s%0*d", packNumberPrefix(accountID), packNumberDigits, sequence)
}

func packNumberPrefix(accountID int) string {
	return fmt.Sprintf("V%dE", accountID)
}

// packSequence extracts the numeric suffix of a pack number for the given
// prefix. Numbers issued for other accounts do not match.
func packSequence(packNo, prefix string) (int, bool) {
	suffix, found := strings.CutPrefix(packNo, prefix)
	if !found || suffix == "" {
		return 0, false
	}
	sequence, err := strconv.Atoi(suffix)
	if err != nil || sequence < 0 {
		return 0, false
	}
	return sequence, true
}

// AssignPackNumber issues the next pack number for the account and writes it
// to the order in one serializable transaction. Exhausting retries under
// contention is a fatal precondition failure for shipment creation.
func (s *OrderStore) AssignPackNumber(ctx context.Context, orderID uuid.UUID, accountID, firstNumber int) (string, error) {
	var lastErr error
	for attempt := 0; attempt < packNumberRetries; attempt++ {
		packNo, err := s.assignPackNumberOnce(ctx, orderID, accountID, firstNumber)
		if err == nil {
			return packNo, nil
		}
		if !isSerializationFailure(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("pack number sequence contention after %d attempts: %w", packNumberRetries, lastErr)
}

func (s *OrderStore) assignPackNumberOnce(ctx context.Context, orderID uuid.UUID, accountID, firstNumber int) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return "", fmt.Errorf("failed to begin pack number transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prefix := packNumberPrefix(accountID)
	maxSequence, err := maxPackSequence(ctx, tx, prefix)
	if err != nil {
		return "", err
	}

	next := maxSequence + 1
	if maxSequence == 0 {
		next = firstNumber
	}
	packNo := FormatPackNumber(accountID, next)

	cmdTag, err := tx.Exec(ctx, `UPDATE orders SET pack_no = $1 WHERE id = $2 AND pack_no IS NULL`, packNo, orderID)
	if err != nil {
		return "", err
	}
	if cmdTag.RowsAffected() == 0 {
		return "", ErrPackNumberAssigned
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return packNo, nil
}

func maxPackSequence(ctx context.Context, tx pgx.Tx, prefix string) (int, error) {
	rows, err := tx.Query(ctx, `SELECT pack_no FROM orders WHERE pack_no LIKE $1`, prefix+"%")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	maxSequence := 0
	for rows.Next() {
		var packNo string
		if err := rows.Scan(&packNo); err != nil {
			return 0, err
		}
		if sequence, ok := packSequence(packNo, prefix); ok && sequence > maxSequence {
			maxSequence = sequence
		}
	}
	return maxSequence, rows.Err()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode
}

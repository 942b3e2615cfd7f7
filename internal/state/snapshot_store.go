package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/lumenvault/svm/internal/types"
)

// SaveCycleSnapshot persists one completed cycle and returns its row id.
func SaveCycleSnapshot(snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	initialPositionsJSON, err := json.Marshal(snapshot.InitialPositions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal initial_positions: %w", err)
	}
	targetsJSON, err := json.Marshal(snapshot.Targets)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal target_allocations: %w", err)
	}
	operationsJSON, err := json.Marshal(snapshot.Operations)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal operations: %w", err)
	}
	receiptsJSON, err := json.Marshal(snapshot.Receipts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal receipts: %w", err)
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_number, cycle_id, trigger_kind, snapshot_timestamp,
			policy, fallback_reason, winner,
			initial_total_native, initial_idle_native, initial_positions,
			target_allocations, operations, receipts, signatures,
			final_total_native, final_idle_native,
			outcome, failure_reason, duration_secs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.CycleID, string(snapshot.Trigger), snapshot.Timestamp,
		string(snapshot.Policy), string(snapshot.Fallback), string(snapshot.Winner),
		int64(snapshot.InitialTotal), int64(snapshot.InitialIdle), initialPositionsJSON,
		targetsJSON, operationsJSON, receiptsJSON, pq.Array(snapshot.Signatures),
		int64(snapshot.FinalTotal), int64(snapshot.FinalIdle),
		string(snapshot.Outcome), snapshot.FailureReason, snapshot.DurationSecs,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("outcome", string(snapshot.Outcome)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns up to limit snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT cycle_number, cycle_id, trigger_kind, snapshot_timestamp,
			policy, fallback_reason, winner,
			initial_total_native, initial_idle_native, initial_positions,
			target_allocations, operations, receipts, signatures,
			final_total_native, final_idle_native,
			outcome, failure_reason, duration_secs
		FROM cycle_snapshots
		ORDER BY cycle_number DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.CycleSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// GetLatestSnapshot returns the most recent snapshot, or sql.ErrNoRows.
func GetLatestSnapshot() (types.CycleSnapshot, error) {
	snaps, err := GetRecentSnapshots(1)
	if err != nil {
		return types.CycleSnapshot{}, err
	}
	if len(snaps) == 0 {
		return types.CycleSnapshot{}, sql.ErrNoRows
	}
	return snaps[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (types.CycleSnapshot, error) {
	var snap types.CycleSnapshot
	var trigger, policy, fallback, winner, outcome string
	var initialTotal, initialIdle, finalTotal, finalIdle int64
	var initialPositionsJSON, targetsJSON, operationsJSON, receiptsJSON []byte
	var signatures pq.StringArray

	err := row.Scan(
		&snap.CycleNumber, &snap.CycleID, &trigger, &snap.Timestamp,
		&policy, &fallback, &winner,
		&initialTotal, &initialIdle, &initialPositionsJSON,
		&targetsJSON, &operationsJSON, &receiptsJSON, &signatures,
		&finalTotal, &finalIdle,
		&outcome, &snap.FailureReason, &snap.DurationSecs,
	)
	if err != nil {
		return snap, fmt.Errorf("failed to scan cycle snapshot: %w", err)
	}

	snap.Trigger = types.TriggerKind(trigger)
	snap.Policy = types.AllocationPolicy(policy)
	snap.Fallback = types.FallbackReason(fallback)
	snap.Winner = types.StrategyID(winner)
	snap.Outcome = types.CycleOutcome(outcome)
	snap.InitialTotal = uint64(initialTotal)
	snap.InitialIdle = uint64(initialIdle)
	snap.FinalTotal = uint64(finalTotal)
	snap.FinalIdle = uint64(finalIdle)
	snap.Signatures = signatures

	if err := json.Unmarshal(initialPositionsJSON, &snap.InitialPositions); err != nil {
		return snap, fmt.Errorf("failed to unmarshal initial_positions: %w", err)
	}
	if err := json.Unmarshal(targetsJSON, &snap.Targets); err != nil {
		return snap, fmt.Errorf("failed to unmarshal target_allocations: %w", err)
	}
	if err := json.Unmarshal(operationsJSON, &snap.Operations); err != nil {
		return snap, fmt.Errorf("failed to unmarshal operations: %w", err)
	}
	if err := json.Unmarshal(receiptsJSON, &snap.Receipts); err != nil {
		return snap, fmt.Errorf("failed to unmarshal receipts: %w", err)
	}
	return snap, nil
}

package persistence

import (
	"database/sql"
	"errors"
	"fmt"
)

// AppendQueueRow inserts one serialized turn at the tail of the message queue.
func AppendQueueRow(payload []byte) error {
	if _, err := GetDB().Exec(`INSERT INTO message_queue (payload) VALUES (?)`, string(payload)); err != nil {
		return fmt.Errorf("failed to append queue row: %w", err)
	}
	return nil
}

// PopHeadQueueRow removes and returns the head row of the message queue.
// ok is false when the queue is empty. Select and delete run in one
// transaction so a crash never leaves a half-popped row.
func PopHeadQueueRow() (payload []byte, ok bool, err error) {
	tx, err := GetDB().Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	var raw string
	err = tx.QueryRow(`SELECT id, payload FROM message_queue ORDER BY id LIMIT 1`).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.Commit()
		return nil, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read queue head: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM message_queue WHERE id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to delete queue head: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit queue pop: %w", err)
	}
	return []byte(raw), true, nil
}

// QueueDepth returns the number of pending rows.
func QueueDepth() (int, error) {
	var depth int
	if err := GetDB().QueryRow(`SELECT COUNT(*) FROM message_queue`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to count queue rows: %w", err)
	}
	return depth, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Checkpoint records how far a mailbox has been indexed.
type Checkpoint struct {
	// Offset is the byte offset at which the next pass resumes.
	Offset int64

	// MessageCount is the number of messages before Offset.
	MessageCount int

	// FileSize is the mailbox size when the checkpoint was taken.
	FileSize int64
}

// GetCheckpoint returns the checkpoint for mailbox. The boolean is false
// when none has been stored.
func (s *Store) GetCheckpoint(ctx context.Context, mailbox string) (Checkpoint, bool, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx,
		"SELECT byte_offset, message_count, file_size FROM checkpoints WHERE mailbox = ?", mailbox).
		Scan(&cp.Offset, &cp.MessageCount, &cp.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, true, nil
}

// PutCheckpoint stores or replaces the checkpoint for mailbox.
func (s *Store) PutCheckpoint(ctx context.Context, mailbox string, cp Checkpoint) error {
	if err := s.writable(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (mailbox, byte_offset, message_count, file_size, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(mailbox) DO UPDATE SET
			byte_offset = excluded.byte_offset,
			message_count = excluded.message_count,
			file_size = excluded.file_size,
			updated_at = excluded.updated_at`,
		mailbox, cp.Offset, cp.MessageCount, cp.FileSize)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint forgets the checkpoint for mailbox.
func (s *Store) ClearCheckpoint(ctx context.Context, mailbox string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE mailbox = ?", mailbox); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

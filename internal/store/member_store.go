package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chiehyu/grouptask/internal/model"
)

// EnsureMember returns the member with the given name in the group,
// registering them first if they have never been mentioned before.
// The (name, group_id) unique constraint makes the insert race-safe:
// two concurrent creates for a new name both end up with the same row.
func (s *SQLiteStore) EnsureMember(ctx context.Context, name, groupID string) (*model.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("member name must not be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (name, group_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name, group_id) DO NOTHING`,
		name, groupID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("registering member %q: %w", name, err)
	}

	return s.GetMemberByName(ctx, name, groupID)
}

// GetMemberByName retrieves a member by name within a group scope.
func (s *SQLiteStore) GetMemberByName(ctx context.Context, name, groupID string) (*model.Member, error) {
	var m model.Member
	err := s.db.GetContext(ctx, &m,
		"SELECT * FROM members WHERE name = ? AND group_id = ?", name, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %q in group %s: %w", name, groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting member %q: %w", name, err)
	}
	return &m, nil
}

// LinkMemberLineID attaches a chat-platform user id to the member with
// the given name, once. An already linked member or an unknown name is
// left alone; linking is best-effort enrichment, never a failure path.
func (s *SQLiteStore) LinkMemberLineID(ctx context.Context, name, groupID, lineUserID string) error {
	if name == "" || lineUserID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE members SET line_user_id = ?
		WHERE name = ? AND group_id = ? AND line_user_id IS NULL`,
		lineUserID, name, groupID,
	)
	if err != nil {
		return fmt.Errorf("linking member %q: %w", name, err)
	}
	return nil
}

package store

import (
	"context"

	"live-commerce/internal/models"

	"github.com/google/uuid"
)

// CreateComment stores a viewer comment
func (s *Store) CreateComment(ctx context.Context, comment *models.LiveComment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}

	query := `
		INSERT INTO live_comments (id, live_session_id, platform, username, user_id, comment_text, matched_keyword, saree_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING timestamp`

	return s.db.QueryRowxContext(ctx, query,
		comment.ID, comment.LiveSessionID, comment.Platform, comment.Username, comment.UserID,
		comment.CommentText, comment.MatchedKeyword, comment.SareeCode,
	).Scan(&comment.Timestamp)
}

// ListComments returns a session's comments, latest first
func (s *Store) ListComments(ctx context.Context, sessionID string) ([]models.LiveComment, error) {
	comments := []models.LiveComment{}
	err := s.db.SelectContext(ctx, &comments,
		"SELECT * FROM live_comments WHERE live_session_id = $1 ORDER BY timestamp DESC LIMIT $2",
		sessionID, listLimit)
	return comments, err
}

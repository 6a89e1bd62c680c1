package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"live-commerce/internal/models"
	"live-commerce/internal/util"

	"go.uber.org/zap"
)

// KeywordBuy marks a comment asking to buy a saree
const KeywordBuy = "BUY"

var buyKeyword = regexp.MustCompile(`(?i)\bBUY\s+([A-Z0-9][A-Z0-9-]*)`)

// SessionService manages live sessions, their pinned sarees and viewer comments
type SessionService struct {
	sessions SessionStore
	catalog  CatalogStore
	comments CommentStore
	hub      SessionBroadcaster
	logger   *zap.Logger
}

// NewSessionService creates a session service. hub may be nil.
func NewSessionService(sessions SessionStore, catalog CatalogStore, comments CommentStore, hub SessionBroadcaster) *SessionService {
	return &SessionService{
		sessions: sessions,
		catalog:  catalog,
		comments: comments,
		hub:      hub,
		logger:   util.Component("session_service"),
	}
}

// StartSessionRequest opens a broadcast on one or more platforms
type StartSessionRequest struct {
	Title     string   `json:"title" binding:"required"`
	Platforms []string `json:"platforms" binding:"required,min=1"`
}

// PinRequest shows a saree on the live stream
type PinRequest struct {
	SareeCode string `json:"saree_code" binding:"required"`
}

// CommentRequest is a viewer comment relayed from a streaming platform
type CommentRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username" binding:"required"`
	UserID      string `json:"user_id"`
	CommentText string `json:"comment_text" binding:"required"`
}

// DetectPurchaseKeyword returns the saree code of the first "BUY <code>" in text
func DetectPurchaseKeyword(text string) (string, bool) {
	m := buyKeyword.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// Start creates an active session for the seller
func (s *SessionService) Start(ctx context.Context, sellerID string, req *StartSessionRequest) (*models.LiveSession, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.Start")
	defer span.End()

	platforms := make([]string, 0, len(req.Platforms))
	seen := make(map[string]bool)
	for _, p := range req.Platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if !models.Platform(p).Valid() {
			return nil, fmt.Errorf("platform %q: %w", p, models.ErrInvalidInput)
		}
		if !seen[p] {
			seen[p] = true
			platforms = append(platforms, p)
		}
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("at least one platform is required: %w", models.ErrInvalidInput)
	}

	session := &models.LiveSession{
		SellerID:  sellerID,
		Platforms: platforms,
		Title:     req.Title,
		Status:    models.SessionStatusActive,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Live session started",
		zap.String("session_id", session.ID),
		zap.Strings("platforms", platforms))
	return session, nil
}

// Get returns one of the seller's sessions
func (s *SessionService) Get(ctx context.Context, sellerID, sessionID string) (*models.LiveSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.SellerID != sellerID {
		return nil, fmt.Errorf("live session %s: %w", sessionID, models.ErrNotFound)
	}
	return session, nil
}

// List returns the seller's sessions
func (s *SessionService) List(ctx context.Context, sellerID string) ([]models.LiveSession, error) {
	return s.sessions.ListSessions(ctx, sellerID)
}

// End closes the session; totals stay as accumulated
func (s *SessionService) End(ctx context.Context, sellerID, sessionID string) (*models.LiveSession, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.End", "session_id", sessionID)
	defer span.End()

	session, err := s.sessions.EndSession(ctx, sellerID, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Live session ended",
		zap.String("session_id", session.ID),
		zap.Int("total_orders", session.TotalOrders),
		zap.String("total_revenue", session.TotalRevenue.String()))
	return session, nil
}

// Pin records that a saree is being shown and broadcasts it to viewers
func (s *SessionService) Pin(ctx context.Context, sellerID, sessionID string, req *PinRequest) (*models.ProductPin, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.Pin", "session_id", sessionID)
	defer span.End()

	session, err := s.Get(ctx, sellerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("live session %s has ended: %w", sessionID, models.ErrConflict)
	}

	product, err := s.catalog.GetProductByCode(ctx, sellerID, req.SareeCode)
	if err != nil {
		return nil, err
	}

	pin := &models.ProductPin{
		LiveSessionID: session.ID,
		SareeID:       product.ID,
		SareeCode:     product.SareeCode,
	}
	if err := s.sessions.CreatePin(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to pin saree: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastPin(session.ID, pin)
	}
	return pin, nil
}

// Pins returns the session's pin history
func (s *SessionService) Pins(ctx context.Context, sellerID, sessionID string) ([]models.ProductPin, error) {
	if _, err := s.Get(ctx, sellerID, sessionID); err != nil {
		return nil, err
	}
	return s.sessions.ListPins(ctx, sessionID)
}

// AddComment records a viewer comment on a live session and broadcasts it.
// Platform defaults to the session's first platform.
func (s *SessionService) AddComment(ctx context.Context, sellerID, sessionID string, req *CommentRequest) (*models.LiveComment, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.AddComment", "session_id", sessionID)
	defer span.End()

	session, err := s.Get(ctx, sellerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("live session %s has ended: %w", sessionID, models.ErrConflict)
	}

	platform := models.Platform(strings.ToLower(strings.TrimSpace(req.Platform)))
	if platform == "" && len(session.Platforms) > 0 {
		platform = models.Platform(session.Platforms[0])
	}
	if !platform.Valid() {
		return nil, fmt.Errorf("platform %q: %w", req.Platform, models.ErrInvalidInput)
	}

	text := strings.TrimSpace(req.CommentText)
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", models.ErrInvalidInput)
	}

	comment := &models.LiveComment{
		LiveSessionID: session.ID,
		Platform:      platform,
		Username:      req.Username,
		UserID:        req.UserID,
		CommentText:   text,
	}
	if code, ok := DetectPurchaseKeyword(text); ok {
		keyword := KeywordBuy
		comment.MatchedKeyword = &keyword
		comment.SareeCode = &code
		s.logger.Info("Purchase keyword in comment",
			zap.String("session_id", session.ID),
			zap.String("saree_code", code),
			zap.String("username", req.Username))
	}

	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to record comment: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastComment(session.ID, comment)
	}
	return comment, nil
}

// Comments returns the session's comments, latest first
func (s *SessionService) Comments(ctx context.Context, sellerID, sessionID string) ([]models.LiveComment, error) {
	if _, err := s.Get(ctx, sellerID, sessionID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, sessionID)
}

package api

import (
	"net/http"

	"live-commerce/internal/models"
	"live-commerce/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) startSession(c *gin.Context) {
	var req service.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), sellerID(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.sessions.List(c.Request.Context(), sellerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), sellerID(c), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) endSession(c *gin.Context) {
	session, err := h.sessions.End(c.Request.Context(), sellerID(c), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Live session ended",
		"session": session,
	})
}

func (h *Handler) pinProduct(c *gin.Context) {
	var req service.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pin, err := h.sessions.Pin(c.Request.Context(), sellerID(c), c.Param("session_id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pin)
}

func (h *Handler) listPins(c *gin.Context) {
	pins, err := h.sessions.Pins(c.Request.Context(), sellerID(c), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pins)
}

func (h *Handler) addComment(c *gin.Context) {
	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.sessions.AddComment(c.Request.Context(), sellerID(c), c.Param("session_id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) listComments(c *gin.Context) {
	comments, err := h.sessions.Comments(c.Request.Context(), sellerID(c), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// watchSession upgrades to a WebSocket that streams the session's pins
func (h *Handler) watchSession(c *gin.Context) {
	if h.hub == nil {
		h.writeError(c, models.ErrUnavailable)
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), sellerID(c), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.hub.Serve(c.Writer, c.Request, session.ID)
}

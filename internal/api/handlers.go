package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tutorhub/internal/auth"
	"tutorhub/internal/matching"
	"tutorhub/internal/profile"
	"tutorhub/internal/scheduling"
)

// Handler exposes the scheduling engine over HTTP. Status mapping for the
// engine's error kinds lives here; the engine itself never sees HTTP.
type Handler struct {
	service  *scheduling.Service
	sweeper  *scheduling.Sweeper
	profiles profile.Store

	jwtIssuer  string
	jwtKey     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New creates a handler.
func New(service *scheduling.Service, sweeper *scheduling.Sweeper, profiles profile.Store, jwtIssuer, jwtKey string, accessTTL, refreshTTL time.Duration) *Handler {
	return &Handler{
		service:    service,
		sweeper:    sweeper,
		profiles:   profiles,
		jwtIssuer:  jwtIssuer,
		jwtKey:     jwtKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register mounts all routes on r. authed guards everything except token
// issuance.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/token", h.IssueToken)

	authed := r.Group("/v1", auth.UserAuth(h.jwtKey, h.jwtIssuer))
	authed.POST("/sessions", h.OpenSession)
	authed.GET("/sessions", h.ListSessions)
	authed.GET("/sessions/:id", h.GetSession)
	authed.POST("/sessions/:id/register", h.RegisterForSession)
	authed.POST("/sessions/:id/confirm", h.ConfirmSession)
	authed.POST("/sessions/:id/complete", h.CompleteSession)
	authed.POST("/sessions/:id/cancel", h.CancelSession)
	authed.GET("/match/:tutor_id", h.ComputeMatchScore)

	admin := authed.Group("/admin", auth.RequireRole(scheduling.RoleAdmin))
	admin.POST("/sweep", h.RunSweep)
}

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=student tutor admin"`
}

// IssueToken exchanges an upstream-authenticated identity for engine
// tokens. Account authentication itself lives in the surrounding system.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Issue(req.UserID, req.Role, h.jwtIssuer, h.jwtKey, h.accessTTL, h.refreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

type openSessionRequest struct {
	StudentID       string `json:"student_id"`
	Subject         string `json:"subject"`
	Date            string `json:"date" binding:"required"`
	Start           string `json:"start" binding:"required"`
	End             string `json:"end" binding:"required"`
	IsOpen          bool   `json:"is_open"`
	MaxParticipants int    `json:"max_participants"`
}

// OpenSession creates a new session owned by the acting tutor.
func (h *Handler) OpenSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if actor.Role != scheduling.RoleTutor && actor.Role != scheduling.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only tutors open sessions"})
		return
	}
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.service.OpenSession(c.Request.Context(), actor.UserID, scheduling.OpenSessionInput{
		StudentID:       req.StudentID,
		Subject:         req.Subject,
		Date:            req.Date,
		Start:           req.Start,
		End:             req.End,
		IsOpen:          req.IsOpen,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// GetSession returns a single session.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// ListSessions lists sessions for the query filters: ?tutor_id=, ?student_id=,
// or ?open=true.
func (h *Handler) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		sessions []*scheduling.Session
		err      error
	)
	switch {
	case c.Query("tutor_id") != "":
		sessions, err = h.service.SessionsForTutor(ctx, c.Query("tutor_id"))
	case c.Query("student_id") != "":
		sessions, err = h.service.SessionsForStudent(ctx, c.Query("student_id"))
	case c.Query("open") == "true":
		sessions, err = h.service.OpenSessions(ctx)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide tutor_id, student_id, or open=true"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// RegisterForSession enrolls the acting student into an open session.
func (h *Handler) RegisterForSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	sess, err := h.service.RegisterForSession(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// ConfirmSession confirms a pending session.
func (h *Handler) ConfirmSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	sess, err := h.service.ConfirmSession(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// CompleteSession marks a confirmed session completed.
func (h *Handler) CompleteSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	sess, err := h.service.CompleteSession(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelSession cancels a session with the actor and reason recorded.
func (h *Handler) CancelSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.service.CancelSession(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// ComputeMatchScore scores the acting student against a tutor for the
// requested subjects (?subjects=calculus,linear+algebra).
func (h *Handler) ComputeMatchScore(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	student, err := h.profiles.Student(ctx, actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	tutor, err := h.profiles.Tutor(ctx, c.Param("tutor_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if student == nil || tutor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	var subjects []string
	if raw := c.Query("subjects"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				subjects = append(subjects, s)
			}
		}
	}
	c.JSON(http.StatusOK, matching.Score(student, tutor, subjects))
}

// RunSweep triggers one sweep iteration outside the timer. Admin only.
func (h *Handler) RunSweep(c *gin.Context) {
	stats := h.sweeper.RunSweepOnce(c.Request.Context())
	status := http.StatusOK
	if stats.Skipped {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"completed": stats.Completed,
		"no_shows":  stats.NoShows,
		"errors":    stats.Errors,
		"skipped":   stats.Skipped,
	})
}

func actorFrom(c *gin.Context) (scheduling.Actor, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return scheduling.Actor{}, false
	}
	return scheduling.Actor{UserID: claims.Subject, Role: claims.Role}, true
}

func toSessionResponse(s *scheduling.Session) gin.H {
	registered := make([]gin.H, 0, len(s.Registered))
	for _, r := range s.Registered {
		registered = append(registered, gin.H{
			"student_id":    r.StudentID,
			"registered_at": r.RegisteredAt,
		})
	}
	resp := gin.H{
		"id":                  s.ID,
		"tutor_id":            s.TutorID,
		"subject":             s.Subject,
		"is_open":             s.IsOpen,
		"max_participants":    s.MaxParticipants,
		"registered_students": registered,
		"date":                s.Window.Date,
		"start":               s.Window.StartClock(),
		"end":                 s.Window.EndClock(),
		"duration_minutes":    s.DurationMinutes,
		"status":              string(s.Status),
		"auto_completed":      s.AutoCompleted,
		"created_at":          s.CreatedAt,
	}
	if s.StudentID != "" {
		resp["student_id"] = s.StudentID
	}
	if s.Status == scheduling.StatusCancelled {
		resp["cancelled_by"] = s.CancelledBy
		resp["cancel_reason"] = s.CancelReason
		resp["cancelled_at"] = s.CancelledAt
	}
	return resp
}

func writeError(c *gin.Context, err error) {
	switch scheduling.KindOf(err) {
	case scheduling.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case scheduling.KindUnauthorized:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case scheduling.KindInvalidTransition,
		scheduling.KindScheduleConflict,
		scheduling.KindNotOpen,
		scheduling.KindAlreadyRegistered,
		scheduling.KindFull:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

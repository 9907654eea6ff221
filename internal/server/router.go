package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/tiktuk/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/tiktuk/backend/internal/feed"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "tiktuk_user_id"

const heartbeatInterval = 15 * time.Second

var (
	errMissingSessionManager = errors.New("session manager dependency required")
	errMissingFeedService    = errors.New("feed service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// SessionManager mints and validates visitor session tokens.
type SessionManager interface {
	IssueVisitorSession(ctx context.Context) (auth.VisitorSession, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the core and its collaborator services.
type Dependencies struct {
	Sessions    SessionManager
	FeedService *feed.Service
	Realtime    *RealtimeDispatcher
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin router for the web collaborator. Every route
// except session minting requires a bearer token; handlers translate HTTP
// requests into feed actions and render the structured results as JSON.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.FeedService == nil {
		return nil, errMissingFeedService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions: deps.Sessions,
		feed:     deps.FeedService,
		realtime: realtime,
		logger:   logger,
	}

	router.POST("/auth/visitor", handler.handleVisitorSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/feed", handler.handleViewFeed)
	protected.POST("/feed/advance", handler.handleAdvance)
	protected.GET("/feed/events", handler.handleFeedEvents)
	protected.POST("/videos", handler.handleAddVideo)
	protected.DELETE("/videos/:id", handler.handleRemoveVideo)
	protected.POST("/videos/:id/like", handler.handleLike)
	protected.POST("/videos/:id/comment", handler.handleBeginComment)
	protected.GET("/videos/:id/comments", handler.handleListComments)
	protected.POST("/comments", handler.handleSubmitComment)

	return router, nil
}

type httpHandler struct {
	sessions SessionManager
	feed     *feed.Service
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

type visitorSessionPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Subject     string `json:"subject"`
}

func (h *httpHandler) handleVisitorSession(c *gin.Context) {
	session, err := h.sessions.IssueVisitorSession(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to issue visitor session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, visitorSessionPayload{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresIn:   session.ExpiresIn,
		Subject:     session.Subject,
	})
}

type videoPayload struct {
	ID        int64  `json:"id"`
	AssetRef  string `json:"asset_ref"`
	MediaKind string `json:"media_kind"`
	Caption   string `json:"caption"`
	AddedBy   string `json:"added_by"`
	CreatedAt int64  `json:"created_at_s"`
}

type feedViewPayload struct {
	Video    videoPayload `json:"video"`
	Likes    int64        `json:"likes"`
	Comments int64        `json:"comments"`
	Position int64        `json:"position"`
	Total    int64        `json:"total"`
}

func renderVideo(record feed.VideoRecord) videoPayload {
	return videoPayload{
		ID:        record.ID,
		AssetRef:  record.AssetRef,
		MediaKind: string(record.MediaKind),
		Caption:   record.Caption,
		AddedBy:   record.AddedBy,
		CreatedAt: record.CreatedAt.Unix(),
	}
}

func (h *httpHandler) renderFeedResult(c *gin.Context, result feed.Result) {
	switch result.Kind {
	case feed.ResultFeedView:
		view := result.View
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"view": feedViewPayload{
				Video:    renderVideo(view.Video),
				Likes:    view.Counts.Likes,
				Comments: view.Counts.Comments,
				Position: view.Position,
				Total:    view.Total,
			},
		})
	case feed.ResultEmptyCatalog:
		c.JSON(http.StatusOK, gin.H{"status": "empty"})
	default:
		h.logger.Error("unexpected feed result", zap.String("kind", string(result.Kind)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

func (h *httpHandler) handleViewFeed(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))
	result, err := h.feed.Dispatch(c.Request.Context(), feed.ViewFeed{User: user})
	if err != nil {
		h.logger.Error("view feed failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}
	h.renderFeedResult(c, result)
}

type advanceRequestPayload struct {
	Direction string `json:"direction"`
}

func (h *httpHandler) handleAdvance(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))

	var request advanceRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	direction, err := feed.ParseDirection(request.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_direction"})
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.Advance{User: user, Direction: direction})
	if err != nil {
		h.logger.Error("advance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}
	h.renderFeedResult(c, result)
}

type addVideoRequestPayload struct {
	MediaKind      string `json:"media_kind"`
	AssetRef       string `json:"asset_ref"`
	AssetUniqueRef string `json:"asset_unique_ref"`
	Caption        string `json:"caption"`
}

func (h *httpHandler) handleAddVideo(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))

	var request addVideoRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	mediaKind, err := feed.ParseMediaKind(request.MediaKind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_media_kind"})
		return
	}
	if strings.TrimSpace(request.AssetRef) == "" || strings.TrimSpace(request.AssetUniqueRef) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_asset_ref"})
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.AddVideo{
		User:           user,
		MediaKind:      mediaKind,
		AssetRef:       request.AssetRef,
		AssetUniqueRef: request.AssetUniqueRef,
		Caption:        request.Caption,
	})
	if err != nil {
		h.logger.Error("add video failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultVideoAdded:
		h.realtime.Publish(RealtimeEvent{
			EventType: RealtimeEventVideoAdded,
			VideoID:   result.Video.ID,
			Timestamp: time.Now().UTC(),
		})
		c.JSON(http.StatusCreated, gin.H{"status": "added", "video": renderVideo(*result.Video)})
	case feed.ResultDuplicateVideo:
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_video"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

func (h *httpHandler) handleRemoveVideo(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))
	videoID, ok := parseVideoID(c)
	if !ok {
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.RemoveVideo{User: user, VideoID: videoID})
	if err != nil {
		h.logger.Error("remove video failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultVideoRemoved:
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	case feed.ResultVideoGone:
		c.JSON(http.StatusNotFound, gin.H{"error": "video_gone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

func (h *httpHandler) handleLike(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))
	videoID, ok := parseVideoID(c)
	if !ok {
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.Like{User: user, VideoID: videoID})
	if err != nil {
		h.logger.Error("like failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultLikeRecorded, feed.ResultAlreadyLiked:
		status := "liked"
		if result.Kind == feed.ResultAlreadyLiked {
			status = "already_liked"
		}
		h.realtime.Publish(RealtimeEvent{
			EventType: RealtimeEventCountsChanged,
			VideoID:   videoID,
			Likes:     result.Counts.Likes,
			Comments:  result.Counts.Comments,
			Timestamp: time.Now().UTC(),
		})
		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"likes":    result.Counts.Likes,
			"comments": result.Counts.Comments,
		})
	case feed.ResultVideoGone:
		c.JSON(http.StatusNotFound, gin.H{"error": "video_gone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

func (h *httpHandler) handleBeginComment(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))
	videoID, ok := parseVideoID(c)
	if !ok {
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.BeginComment{User: user, VideoID: videoID})
	if err != nil {
		h.logger.Error("begin comment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultCommentPromptArmed:
		c.JSON(http.StatusOK, gin.H{"status": "comment_prompt_armed", "video_id": result.Video.ID})
	case feed.ResultVideoGone:
		c.JSON(http.StatusNotFound, gin.H{"error": "video_gone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

type submitCommentRequestPayload struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleSubmitComment(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))

	var request submitCommentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.SubmitCommentText{User: user, Text: request.Text})
	if err != nil {
		h.logger.Error("submit comment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultCommentStored:
		event := RealtimeEvent{
			EventType: RealtimeEventCountsChanged,
			Likes:     result.Counts.Likes,
			Comments:  result.Counts.Comments,
			Timestamp: time.Now().UTC(),
		}
		if result.Video != nil {
			event.VideoID = result.Video.ID
		}
		h.realtime.Publish(event)
		c.JSON(http.StatusCreated, gin.H{"status": "comment_stored", "comments": result.Counts.Comments})
	case feed.ResultCommentIgnored:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

type commentPayload struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at_s"`
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	user := feed.UserID(c.GetString(userIDContextKey))
	videoID, ok := parseVideoID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	result, err := h.feed.Dispatch(c.Request.Context(), feed.ListComments{User: user, VideoID: videoID, Limit: limit})
	if err != nil {
		h.logger.Error("list comments failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
		return
	}

	switch result.Kind {
	case feed.ResultCommentList:
		comments := make([]commentPayload, 0, len(result.Comments))
		for _, fact := range result.Comments {
			comments = append(comments, commentPayload{
				ID:        fact.ID,
				UserID:    fact.UserID,
				Text:      fact.Text,
				CreatedAt: fact.CreatedAt.Unix(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"video_id": videoID, "comments": comments})
	case feed.ResultVideoGone:
		c.JSON(http.StatusNotFound, gin.H{"error": "video_gone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed_unavailable"})
	}
}

// handleFeedEvents streams realtime feed events over SSE. Event loss is
// acceptable; clients re-fetch the feed on reconnect.
func (h *httpHandler) handleFeedEvents(c *gin.Context) {
	stream, cleanup := h.realtime.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(event.EventType, gin.H{
				"video_id": event.VideoID,
				"likes":    event.Likes,
				"comments": event.Comments,
				"ts":       event.Timestamp.Unix(),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"ts": time.Now().UTC().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func parseVideoID(c *gin.Context) (int64, bool) {
	videoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || videoID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_video_id"})
		return 0, false
	}
	return videoID, true
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.sessions.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/services"
	apperrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/response"
)

// StreamServer attaches an authenticated user to the realtime event stream.
type StreamServer interface {
	Serve(userID string, w http.ResponseWriter, r *http.Request)
}

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service *services.NotificationService
	stream  StreamServer
}

// NewNotificationHandler constructs a notification handler. stream may be nil,
// in which case the websocket endpoint answers 404.
func NewNotificationHandler(service *services.NotificationService, stream StreamServer) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{service: service, stream: stream}, nil
}

type createNotificationRequest struct {
	PostID string `json:"post_id"`
	// LegacyPostID accepts the camelCase field sent by older post services.
	LegacyPostID string `json:"postId"`
	Message      string `json:"message" validate:"required,notblank,max=1024"`
}

// Create stores the notification for a post. It answers 201 when a record was
// stored and 200 when the existing notification is returned.
func (h *NotificationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	postID := strings.TrimSpace(req.PostID)
	if postID == "" {
		postID = strings.TrimSpace(req.LegacyPostID)
	}
	if postID == "" {
		response.Error(c, apperrors.NewBadRequest("post_id is required"))
		return
	}

	dto, created, err := h.service.Create(requestContext(c), services.CreateNotificationInput{
		PostID:      postID,
		Message:     req.Message,
		RequesterID: userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if created {
		response.Success(c, http.StatusCreated, dto)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// List returns every notification newest first with the caller's seen flag.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := parseIntQuery(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		RequesterID: userID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  int(total),
	})
}

// MarkSeen records that the caller has seen the notification.
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	dto, err := h.service.MarkSeen(requestContext(c), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Stream upgrades the connection to a WebSocket carrying notification events.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.stream == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.stream.Serve(userID, c.Writer, c.Request)
}

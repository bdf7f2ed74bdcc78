package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"notify_poller/internal/config"
	"notify_poller/internal/domain"
	"notify_poller/internal/http/dto"
	"notify_poller/internal/http/middleware"
	"notify_poller/internal/http/resp"
	"notify_poller/internal/model"
	"notify_poller/internal/queue"
	"notify_poller/internal/repository"
	"notify_poller/internal/service/notify"
)

const (
	defaultPageLimit = 20
	invalidTypeMsg   = "type must be one of: chat_message, offer_accepted, offer_received, trade_completed"
)

type Handler struct {
	cfg *config.Config
	svc *notify.Service
	log *zap.Logger
	pub queue.Publisher
}

func NewHandler(cfg *config.Config, svc *notify.Service, logger *zap.Logger, publisher queue.Publisher) *Handler {
	return &Handler{cfg: cfg, svc: svc, log: logger, pub: publisher}
}

// ListNotifications serves both the unread list (unread_only=true) and the
// paged history.
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := middleware.UserID(c)

	if c.Query("unread_only") == "true" {
		items, err := h.svc.ListUnread(c.Request.Context(), userID)
		if err != nil {
			resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to list notifications")
			return
		}
		resp.Data(c, http.StatusOK, dto.UnreadListResponse{Notifications: nonNil(items)})
		return
	}

	page, ok := positiveQuery(c, "page", 1)
	if !ok {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, "page must be a positive integer")
		return
	}
	limit, ok := positiveQuery(c, "limit", defaultPageLimit)
	if !ok {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, "limit must be a positive integer")
		return
	}
	if h.cfg.MaxPageLimit > 0 && limit > h.cfg.MaxPageLimit {
		limit = h.cfg.MaxPageLimit
	}

	items, hasMore, err := h.svc.ListPage(c.Request.Context(), userID, page, limit)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to list notifications")
		return
	}
	resp.Data(c, http.StatusOK, dto.PageResponse{Notifications: nonNil(items), HasMore: hasMore})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.svc.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to count notifications")
		return
	}
	resp.Data(c, http.StatusOK, dto.CountResponse{Count: count})
}

func (h *Handler) MarkRead(c *gin.Context) {
	err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if h.mutationFailed(c, err) {
		return
	}
	resp.Data(c, http.StatusOK, gin.H{})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	updated, err := h.svc.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if h.mutationFailed(c, err) {
		return
	}
	resp.Data(c, http.StatusOK, dto.MarkAllReadResponse{Updated: updated})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if h.mutationFailed(c, err) {
		return
	}
	resp.Data(c, http.StatusOK, gin.H{})
}

func (h *Handler) CreateNotification(c *gin.Context) {
	notification, ok := h.bindNotification(c)
	if !ok {
		return
	}
	created, err := h.svc.Create(c.Request.Context(), notification)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) || errors.Is(err, domain.ErrInvalidNotificationType) || errors.Is(err, notify.ErrMissingUser) {
			resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, err.Error())
			return
		}
		h.log.Error("create notification failed",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err),
		)
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to create notification")
		return
	}
	resp.Data(c, http.StatusCreated, created)
}

// PublishNotification validates a domain event and queues it for the
// ingest consumer instead of storing it directly.
func (h *Handler) PublishNotification(c *gin.Context) {
	notification, ok := h.bindNotification(c)
	if !ok {
		return
	}

	payload, err := json.Marshal(queue.Event{
		UserID:     notification.UserID,
		Type:       string(notification.Type),
		Data:       notification.Data,
		RelatedURL: notification.RelatedURL,
	})
	if err != nil {
		h.log.Error("publish payload marshal failed", zap.Error(err))
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to publish notification")
		return
	}

	prefix := h.cfg.RabbitPublishPrefix
	if prefix == "" {
		prefix = "notification"
	}
	routingKey := prefix + "." + string(notification.Type)
	if err := h.pub.Publish(c.Request.Context(), payload, routingKey); err != nil {
		h.log.Error("publish notification failed",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to publish notification")
		return
	}

	c.JSON(http.StatusAccepted, dto.StatusResponse{Code: resp.CodeQueued, Message: "queued"})
}

func (h *Handler) bindNotification(c *gin.Context) (model.Notification, bool) {
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, "invalid json")
		return model.Notification{}, false
	}
	if req.UserID == "" || req.Type == "" || len(req.Data) == 0 {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, "user_id, type, data are required")
		return model.Notification{}, false
	}
	if !domain.IsValidNotificationType(req.Type) {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, invalidTypeMsg)
		return model.Notification{}, false
	}
	payload, err := domain.DecodePayload(domain.Type(req.Type), req.Data)
	if err != nil {
		resp.Error(c, http.StatusBadRequest, resp.CodeBadRequest, err.Error())
		return model.Notification{}, false
	}
	return model.Notification{
		UserID:     req.UserID,
		Type:       domain.Type(req.Type),
		Data:       payload,
		RelatedURL: req.RelatedURL,
	}, true
}

func (h *Handler) mutationFailed(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repository.ErrNotFound):
		resp.Error(c, http.StatusNotFound, resp.CodeNotFound, "notification not found")
	default:
		resp.Error(c, http.StatusInternalServerError, resp.CodeInternalError, "failed to update notification")
	}
	return true
}

func positiveQuery(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func nonNil(items []model.Notification) []model.Notification {
	if items == nil {
		return []model.Notification{}
	}
	return items
}

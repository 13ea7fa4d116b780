package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/observability"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

// Per-subscriber channel depth. A slow SSE client loses events beyond
// this rather than blocking submits for the whole group.
const notificationBufferSize = 16

// NotificationService persists notifications and fans them out to live
// SSE subscribers, bridging instances over Redis pub/sub and NATS.
type NotificationService interface {
	EvaluationNotifier
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *subscriberHub
	nodeID      string
}

// fanoutEvent is the cross-instance wire envelope. Origin lets each
// instance drop its own echoes.
type fanoutEvent struct {
	Origin  string                   `json:"origin"`
	Payload dto.NotificationResponse `json:"payload"`
	At      time.Time                `json:"at"`
}

// NewNotificationService constructs a notification service. channelBase
// namespaces the Redis channel and NATS subject so several deployments can
// share one broker.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	var stream, subject string
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sman-go-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		hub:         newSubscriberHub(),
		nodeID:      uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// EvaluationSubmitted fans one event out to every other group member so
// their dashboards refresh.
func (s *notificationService) EvaluationSubmitted(ctx context.Context, group models.Group, phase models.Phase, evaluatorID uint) {
	message := fmt.Sprintf("A peer evaluation for %s was submitted in group %s.", phase.Name, group.Name)

	for _, member := range group.Members {
		if member.StudentID == evaluatorID {
			continue
		}

		_, err := s.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  member.StudentID,
			Type:    models.NotificationTypeEvaluationSubmitted,
			Message: message,
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("user_id", member.StudentID).Msg("failed to notify group member")
		}
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(payload.UserID)),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		UserID:  payload.UserID,
		Type:    payload.Type,
		Message: cleanMessage,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	s.hub.deliver(response.UserID, response)
	if err := s.relay(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to relay notification to other instances")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	if userID == 0 {
		return nil, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, errors.New("user id is required")
	}
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := s.hub.attach(userID)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.hub.detach(userID, channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

// relay publishes the event to whichever brokers are configured so
// subscribers connected to other instances receive it too.
func (s *notificationService) relay(ctx context.Context, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(fanoutEvent{
		Origin:  s.nodeID,
		Payload: notification,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleRemote([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "sman-notifications", func(msg *nats.Msg) {
		s.handleRemote(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleRemote(payload []byte) {
	var event fanoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Origin == s.nodeID {
		return
	}

	notification := event.Payload
	if notification.Type == "" {
		notification.Type = "generic"
	}

	observability.NotificationsPublishedTotal().WithLabelValues(notification.Type).Inc()
	s.hub.deliver(notification.UserID, notification)
}

// subscriberHub routes notifications to the SSE channels of a single
// instance. A student may hold several connections at once, one per
// open browser tab.
type subscriberHub struct {
	mu       sync.RWMutex
	channels map[uint][]chan dto.NotificationResponse
}

func newSubscriberHub() *subscriberHub {
	return &subscriberHub{channels: make(map[uint][]chan dto.NotificationResponse)}
}

func (h *subscriberHub) attach(userID uint) chan dto.NotificationResponse {
	ch := make(chan dto.NotificationResponse, notificationBufferSize)

	h.mu.Lock()
	h.channels[userID] = append(h.channels[userID], ch)
	h.mu.Unlock()

	return ch
}

func (h *subscriberHub) detach(userID uint, ch chan dto.NotificationResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := h.channels[userID][:0]
	for _, existing := range h.channels[userID] {
		if existing != ch {
			remaining = append(remaining, existing)
		}
	}

	if len(remaining) == 0 {
		delete(h.channels, userID)
	} else {
		h.channels[userID] = remaining
	}
	close(ch)
}

func (h *subscriberHub) deliver(userID uint, notification dto.NotificationResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.channels[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}

package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sman-go-api/internal/dto"
	"github.com/noah-isme/sman-go-api/internal/models"
	"github.com/noah-isme/sman-go-api/internal/repository"
)

func newNotificationService(t *testing.T) NotificationService {
	t.Helper()

	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewNotificationService(
		repository.NewNotificationRepository(db),
		redisClient,
		"sman-test",
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)
}

func TestNotificationPublishPersistsAndBroadcasts(t *testing.T) {
	svc := newNotificationService(t)
	ctx := context.Background()

	stream, cleanup := svc.Subscribe(7)
	defer cleanup()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  7,
		Type:    models.NotificationTypeEvaluationSubmitted,
		Message: "A peer evaluation was submitted.",
	})
	require.NoError(t, err)
	require.NotZero(t, published.ID)
	require.False(t, published.Read)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
		require.Equal(t, published.Message, received.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast notification")
	}

	listed, err := svc.List(ctx, 7, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestNotificationPublishSanitizesMessage(t *testing.T) {
	svc := newNotificationService(t)

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  7,
		Type:    "generic",
		Message: "<script>alert(1)</script>new evaluation",
	})
	require.NoError(t, err)
	require.Equal(t, "new evaluation", published.Message)

	// A message that is nothing but markup is rejected.
	_, err = svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  7,
		Type:    "generic",
		Message: "<img src=x>",
	})
	require.Error(t, err)
}

func TestNotificationMarkRead(t *testing.T) {
	svc := newNotificationService(t)
	ctx := context.Background()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  7,
		Type:    "generic",
		Message: "hello",
	})
	require.NoError(t, err)

	updated, err := svc.MarkRead(ctx, published.ID, 7)
	require.NoError(t, err)
	require.True(t, updated.Read)

	// Another user cannot flip someone else's notification.
	_, err = svc.MarkRead(ctx, published.ID, 8)
	require.Error(t, err)
}

func TestEvaluationSubmittedNotifiesOtherMembers(t *testing.T) {
	svc := newNotificationService(t)
	ctx := context.Background()

	group := models.Group{
		Name: "Team Rocket",
		Members: []models.GroupMember{
			{StudentID: 1},
			{StudentID: 2},
			{StudentID: 3},
		},
	}
	phase := models.Phase{Name: "Sprint Review"}

	svc.EvaluationSubmitted(ctx, group, phase, 1)

	// The evaluator gets nothing, the peers get one each.
	own, err := svc.List(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Empty(t, own)

	for _, peer := range []uint{2, 3} {
		notifications, err := svc.List(ctx, peer, 10, 0)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Equal(t, models.NotificationTypeEvaluationSubmitted, notifications[0].Type)
	}
}

func TestNotificationUnreadCount(t *testing.T) {
	svc := newNotificationService(t)
	ctx := context.Background()

	var first dto.NotificationResponse
	for i := 0; i < 3; i++ {
		published, err := svc.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  7,
			Type:    "generic",
			Message: "hello",
		})
		require.NoError(t, err)
		if i == 0 {
			first = published
		}
	}

	count, err := svc.UnreadCount(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	_, err = svc.MarkRead(ctx, first.ID, 7)
	require.NoError(t, err)

	count, err = svc.UnreadCount(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// A user with no notifications has a zero badge.
	count, err = svc.UnreadCount(ctx, 8)
	require.NoError(t, err)
	require.Zero(t, count)
}

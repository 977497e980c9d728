package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/storage"
	"github.com/skybound-ai/gateway/pkg/logger"
	"github.com/skybound-ai/gateway/pkg/metrics"
)

// publishTimeout bounds how long a request waits on the event stream.
const publishTimeout = 2 * time.Second

// EventPublisher receives history messages and conversation events.
type EventPublisher interface {
	PublishMessage(ctx context.Context, userID, conversationID string, msg *model.ChatMessage) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher discards everything. It is used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, string, string, *model.ChatMessage) (uint64, error) {
	return 0, nil
}

func (NopPublisher) PublishEvent(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// HistoryService manages locally stored conversations for authenticated users.
type HistoryService struct {
	store     storage.Store
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewHistoryService creates a new history service. A nil publisher disables
// event publishing.
func NewHistoryService(store storage.Store, publisher EventPublisher, log *logger.Logger) *HistoryService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &HistoryService{
		store:     store,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Create starts an empty conversation owned by userID.
func (s *HistoryService) Create(ctx context.Context, userID string) (*model.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	s.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         userID,
		Type:           model.EventTypeConversationCreated,
		CreatedAt:      conv.CreatedAt,
	})

	return conv, nil
}

// List returns the user's conversations.
func (s *HistoryService) List(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	convs, err := s.store.GetConversationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	}, nil
}

// Get returns a conversation owned by userID. Conversations of other users
// are reported as not found.
func (s *HistoryService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, notFoundError("Conversation not found")
	}
	return conv, nil
}

// Append adds a message to a conversation owned by userID.
func (s *HistoryService) Append(ctx context.Context, userID, conversationID string, req *model.AppendMessageRequest) (*model.Conversation, error) {
	if err := model.Validate(req); err != nil {
		return nil, validationError(err.Error())
	}

	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:            req.ID,
		Role:          req.Role,
		Content:       req.Content,
		Timestamp:     s.now().UTC(),
		FlightResults: req.FlightResults,
		MemoryContext: req.MemoryContext,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	conv, err := s.store.AddMessageToConversation(ctx, conversationID, msg)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if conv == nil {
		return nil, notFoundError("Conversation not found")
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := s.publisher.PublishMessage(pctx, userID, conversationID, msg); err != nil {
		s.logger.Warn("failed to publish message",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	return conv, nil
}

// RecordUnavailable publishes an event noting that the AI service could not
// answer a request.
func (s *HistoryService) RecordUnavailable(ctx context.Context, userID, conversationID, route, reason string) {
	s.publishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           model.EventTypeUpstreamUnavailable,
		Reason:         reason,
		Metadata:       map[string]any{"route": route},
		CreatedAt:      s.now().UTC(),
	})
}

func (s *HistoryService) publishEvent(ctx context.Context, event *model.ConversationEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
	}
}

package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/pkg/kafka"
	"github.com/KavyaGunapati/TypeFromProject/pkg/logger"
)

// Kafka topics for identity and session events.
var (
	TopicUserRegistered = kafka.Topic("user", "registered")
	TopicSessionStarted = kafka.Topic("session", "started")
	TopicSessionRevoked = kafka.Topic("session", "revoked")
)

// Aggregate types.
const (
	AggregateTypeUser    = "user"
	AggregateTypeSession = "session"
)

// SourceIdentityService identifies events originating from this service.
const SourceIdentityService = "identity-service"

// publishTimeout bounds a single background publish.
const publishTimeout = 5 * time.Second

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

// SessionData is the payload for session.started and session.revoked events.
// Token material is never included.
type SessionData struct {
	UserID         string    `json:"user_id"`
	RefreshTokenID int64     `json:"refresh_token_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Producer publishes identity domain events in the background. Publishing
// never blocks or fails the calling request; failures are logged.
type Producer struct {
	publisher kafka.Publisher
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewProducer creates a new event producer. A nil publisher disables events.
func NewProducer(publisher kafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// UserRegistered publishes a user.registered event.
func (p *Producer) UserRegistered(ctx context.Context, user *domain.User, roles []domain.Role) {
	data := UserRegisteredData{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Roles:    domain.RoleNames(roles),
	}
	p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// SessionStarted publishes a session.started event for a new refresh chain.
func (p *Producer) SessionStarted(ctx context.Context, userID string, refreshTokenID int64, expiresAt time.Time) {
	data := SessionData{UserID: userID, RefreshTokenID: refreshTokenID, ExpiresAt: expiresAt}
	p.publish(ctx, TopicSessionStarted, userID, AggregateTypeSession, data)
}

// SessionRevoked publishes a session.revoked event after logout.
func (p *Producer) SessionRevoked(ctx context.Context, userID string, refreshTokenID int64) {
	data := SessionData{UserID: userID, RefreshTokenID: refreshTokenID}
	p.publish(ctx, TopicSessionRevoked, userID, AggregateTypeSession, data)
}

// Wait blocks until all in-flight publishes have finished.
func (p *Producer) Wait() {
	p.wg.Wait()
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) {
	if p == nil || p.publisher == nil {
		return
	}

	evt, err := kafka.NewEvent(topic, aggregateID, aggregateType, SourceIdentityService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	// Detach from the request so the publish outlives the response.
	bg := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		pctx, cancel := context.WithTimeout(bg, publishTimeout)
		defer cancel()

		if err := p.publisher.Publish(pctx, topic, evt); err != nil {
			p.logger.WarnContext(pctx, "failed to publish event",
				slog.String("topic", topic),
				slog.String("aggregate_id", aggregateID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

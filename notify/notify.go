// Package notify hands invitations to whatever delivers them to candidates.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"skillmatch/services"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 500 * time.Millisecond

// StreamClient is the part of a Redis client the notifier uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisNotifier appends each invitation to a Redis stream read by the mailer.
type RedisNotifier struct {
	client StreamClient
	stream string
	maxLen int64
}

func NewRedisNotifier(client StreamClient, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream, maxLen: 10000}
}

func (n *RedisNotifier) NotifyInvitation(ctx context.Context, inv services.Invitation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invitation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":          "assignment.invitation",
			"assignment_id": inv.AssignmentID.String(),
			"candidate_id":  inv.CandidateID.String(),
			"payload":       string(payload),
		},
	}).Err()
}

// LogNotifier logs that an invitation went out. The token itself is never logged.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyInvitation(_ context.Context, inv services.Invitation) error {
	n.logger.Printf("[notify] invitation %s for candidate %s <%s> on %q expires %s",
		inv.AssignmentID, inv.CandidateID, inv.CandidateEmail, inv.ProjectTitle, inv.ExpiresAt.Format(time.RFC3339))
	return nil
}

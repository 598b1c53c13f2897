package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mocktest_backend/internal/config"
	"mocktest_backend/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const EventAttemptSubmitted = "attempt.submitted"

// AttemptEvent is published once per submitted attempt.
type AttemptEvent struct {
	Type        string    `json:"type"`
	AttemptID   string    `json:"attemptId"`
	SessionID   string    `json:"sessionId"`
	TestID      string    `json:"testId"`
	CandidateID string    `json:"candidateId"`
	Reason      string    `json:"reason"`
	Correct     int       `json:"correct"`
	Wrong       int       `json:"wrong"`
	Skipped     int       `json:"skipped"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev AttemptEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AttemptEvent) error { return nil }

// RedisStreamPublisher appends events to a redis stream, capped at MaxLen.
type RedisStreamPublisher struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev AttemptEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream,
		MaxLen: p.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    ev.Type,
			"testId":  ev.TestID,
			"payload": string(payload),
		},
	}).Err()
}

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSPublisher struct {
	Client   SQSAPI
	QueueURL string
}

func (p *SQSPublisher) Publish(ctx context.Context, ev AttemptEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(payload)),
	})
	return err
}

func newSQSPublisher(ctx context.Context, cfg *config.EventsConfig) (*SQSPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg)
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(cfg.QueueName)})
	if err != nil {
		return nil, fmt.Errorf("resolve queue %q: %w", cfg.QueueName, err)
	}
	return &SQSPublisher{Client: client, QueueURL: aws.ToString(out.QueueUrl)}, nil
}

// NewEventPublisher builds the configured publisher. Misconfiguration falls
// back to a no-op so submissions never fail on the event path.
func NewEventPublisher(ctx context.Context, cfg *config.EventsConfig, rdb *redis.Client) EventPublisher {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			logger.Log.Warn("events.driver=redis without a redis client, events disabled")
			return NopPublisher{}
		}
		return &RedisStreamPublisher{Client: rdb, Stream: cfg.Stream, MaxLen: 100000}
	case "sqs":
		p, err := newSQSPublisher(ctx, cfg)
		if err != nil {
			logger.Log.Warn("sqs publisher unavailable, events disabled", zap.Error(err))
			return NopPublisher{}
		}
		return p
	default:
		return NopPublisher{}
	}
}

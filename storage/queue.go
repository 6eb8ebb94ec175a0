package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// EventQueue forwards task changes to an Azure queue for downstream consumers.
type EventQueue struct {
	enqueue func(ctx context.Context, msg string) error
}

// NewEventQueue connects to the named queue.
func NewEventQueue(connStr, queue string) (*EventQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &EventQueue{enqueue: func(ctx context.Context, msg string) error {
		_, err := q.EnqueueMessage(ctx, msg, nil)
		return err
	}}, nil
}

// Publish enqueues ch as a JSON message.
func (q *EventQueue) Publish(ctx context.Context, ch domain.TaskChange) error {
	data, err := sonic.MarshalString(ch)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, data)
}

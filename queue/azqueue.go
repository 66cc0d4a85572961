package queue

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const defaultPollInterval = time.Second

// AzureQueue polls an Azure Storage queue. Unacknowledged messages become
// visible again once their visibility timeout expires.
type AzureQueue struct {
	client       *azqueue.QueueClient
	pollInterval time.Duration
}

// NewAzureQueue creates a receiver from a storage connection string.
func NewAzureQueue(connStr, queueName string, pollInterval time.Duration) (*AzureQueue, error) {
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &AzureQueue{client: client, pollInterval: pollInterval}, nil
}

func (q *AzureQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		resp, err := q.client.DequeueMessage(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("dequeue failed")
		} else if len(resp.Messages) > 0 {
			return q.delivery(resp.Messages[0]), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *AzureQueue) delivery(msg *azqueue.DequeuedMessage) *Delivery {
	var body []byte
	if msg.MessageText != nil {
		body = []byte(*msg.MessageText)
	}
	return &Delivery{
		Body: body,
		ack: func(ctx context.Context) error {
			_, err := q.client.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil)
			return err
		},
	}
}

func (q *AzureQueue) Close(context.Context) error {
	return nil
}

package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

// MemoryQueue records SendMessage calls.
type MemoryQueue struct {
	mu       sync.Mutex
	Messages []*sqs.SendMessageInput
	Err      error
}

func (q *MemoryQueue) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Messages = append(q.Messages, params)
	id := uuid.NewString()
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Bodies returns the message bodies sent so far.
func (q *MemoryQueue) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.Messages))
	for _, m := range q.Messages {
		out = append(out, *m.MessageBody)
	}
	return out
}

// MetricsRecorder records PutMetricData calls.
type MetricsRecorder struct {
	mu    sync.Mutex
	Calls []*cloudwatch.PutMetricDataInput
	Err   error
}

func (r *MetricsRecorder) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Calls = append(r.Calls, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

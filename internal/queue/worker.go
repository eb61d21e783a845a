package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

const retryHeader = "x-retry-count"

// ConsumeWithRetry runs handler for every delivery on queue until ctx is
// done. Failed deliveries are republished with an incremented retry header
// and rejected to the dead-letter queue after maxRetries.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	msgs, err := c.ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for msg := range msgs {
		err := handler(ctx, msg.Body)
		if err == nil {
			_ = msg.Ack(false)
			continue
		}

		retryCount := retryCountOf(msg.Headers)
		if retryCount >= maxRetries {
			logger.Warn("delivery dead-lettered", zap.String("queue", queue), zap.Int("retries", retryCount), zap.Error(err))
			_ = msg.Nack(false, false)
			continue
		}

		logger.Info("delivery failed, retrying", zap.String("queue", queue), zap.Int("retry", retryCount+1), zap.Error(err))
		headers := msg.Headers
		if headers == nil {
			headers = amqp.Table{}
		}
		headers[retryHeader] = int32(retryCount + 1)

		select {
		case <-ctx.Done():
			_ = msg.Nack(false, true)
			return ctx.Err()
		case <-time.After(retryDelay):
		}

		c.pubMu.Lock()
		pubErr := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageId,
			Type:         msg.Type,
			Body:         msg.Body,
			Headers:      headers,
			Timestamp:    time.Now(),
		})
		c.pubMu.Unlock()
		if pubErr != nil {
			_ = msg.Nack(false, true)
			continue
		}
		_ = msg.Ack(false)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("consumer closed")
}

func retryCountOf(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch t := headers[retryHeader].(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case int:
		return t
	}
	return 0
}

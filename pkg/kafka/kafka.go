package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"tsync-social/pkg/logger"
)

// KafkaConfig 配置
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Producer 异步生产者，后台协程消费成功与失败回执
type Producer struct {
	asyncProducer sarama.AsyncProducer
	logger        logger.Logger
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// ConsumerHandler 消息处理器，返回nil时提交位移
type ConsumerHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerHandlerFunc 函数适配器
type ConsumerHandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// HandleMessage 实现ConsumerHandler
func (f ConsumerHandlerFunc) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return f(ctx, msg)
}

// Consumer 消费组
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler ConsumerHandler
	logger  logger.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// InitProducer 初始化生产者
func InitProducer(brokers []string, log logger.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Partitioner = sarama.NewHashPartitioner
	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(producer, log), nil
}

func newProducer(asyncProducer sarama.AsyncProducer, log logger.Logger) *Producer {
	p := &Producer{asyncProducer: asyncProducer, logger: log}
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for range asyncProducer.Successes() {
		}
	}()
	go func() {
		defer p.wg.Done()
		for perr := range asyncProducer.Errors() {
			p.logger.Error(context.Background(), "Kafka produce failed",
				logger.F("topic", perr.Msg.Topic),
				logger.F("error", perr.Err))
		}
	}()
	return p
}

// SendMessage 发送消息，ctx取消时放弃入队
func (p *Producer) SendMessage(ctx context.Context, topic string, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.ByteEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
	select {
	case p.asyncProducer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue kafka message: %w", ctx.Err())
	}
}

// Close 关闭生产者，等待回执协程退出
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.asyncProducer.Close()
		p.wg.Wait()
	})
	return err
}

// InitConsumer 初始化消费者
func InitConsumer(cfg KafkaConfig, handler ConsumerHandler, log logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return &Consumer{
		group:   group,
		topics:  cfg.Topics,
		handler: handler,
		logger:  log,
	}, nil
}

// Start 在后台启动消费循环，重平衡后自动重新加入
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn(ctx, "Kafka consumer error", logger.F("error", err))
		}
	}()
	go func() {
		defer close(c.done)
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error(ctx, "Kafka consume failed", logger.F("error", err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Close 停止消费并关闭消费组
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return c.group.Close()
}

// Setup sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sess sarama.ConsumerGroupSession) error {
	c.logger.Info(sess.Context(), "Kafka consumer joined", logger.F("member_id", sess.MemberID()))
	return nil
}

// Cleanup sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息，处理失败的消息记录日志后跳过
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handler.HandleMessage(sess.Context(), msg); err != nil {
				c.logger.Warn(sess.Context(), "Kafka message handling failed",
					logger.F("topic", msg.Topic),
					logger.F("offset", msg.Offset),
					logger.F("error", err))
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

const kafkaTimeout = 30 * time.Second

// recordMessage Kafka消息体，一条记录一条消息
type recordMessage struct {
	Experiment string    `json:"experiment"`
	Seed       int64     `json:"seed"`
	Timestamp  float64   `json:"timestamp"`
	Change     int       `json:"change"`
	Approach   []float64 `json:"approach_density"` // N、E、S、W进口道密度
	Exit       []float64 `json:"exit_density"`     // N、E、S、W出口道密度
	Active     string    `json:"active"`
}

// KafkaSink 将每条记录推送到Kafka主题
// 说明：消息键为"{实验ID}/{种子}"，同一次运行的记录进入同一分区，保持时间顺序
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink 创建Kafka输出
func NewKafkaSink(c config.Kafka) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}}
}

// messages 将一次运行的记录转换为Kafka消息
func messages(run entity.Run, records []entity.Record) ([]kafka.Message, error) {
	key := []byte(fmt.Sprintf("%s/%d", run.Experiment, run.Seed))
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		m := recordMessage{
			Experiment: run.Experiment,
			Seed:       run.Seed,
			Timestamp:  r.Timestamp,
			Change:     r.ChangeFlag(),
			Approach:   lo.Map(r.Density[:], func(d entity.LinkDensity, _ int) float64 { return d.In }),
			Exit:       lo.Map(r.Density[:], func(d entity.LinkDensity, _ int) float64 { return d.Out }),
			Active:     r.Active.String(),
		}
		value, err := json.Marshal(m)
		if err != nil {
			return nil, persistenceError("encode record at %v: %v", r.Timestamp, err)
		}
		msgs = append(msgs, kafka.Message{Key: key, Value: value})
	}
	return msgs, nil
}

func (s *KafkaSink) Save(run entity.Run, records []entity.Record) (string, error) {
	msgs, err := messages(run, records)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), kafkaTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return "", persistenceError("write %d records to %s: %v", len(msgs), s.w.Topic, err)
	}
	return fmt.Sprintf("%s/%s/%d", s.w.Topic, run.Experiment, run.Seed), nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

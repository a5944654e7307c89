package domain

import "context"

// EventBus carries assessment lifecycle events between the API and the
// report worker. Go channels back it in the community tier and NATS in pro.
type EventBus interface {
	// Publish is fire and forget. Every plain subscriber sees the message.
	Publish(ctx context.Context, topic string, payload []byte) error

	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe joins a queue group on topic. Each message is handled
	// by one member of the group, so a report is generated once however
	// many nodes run a worker.
	QueueSubscribe(ctx context.Context, topic, queue string, handler MessageHandler) (Subscription, error)

	// Request publishes payload and blocks for the first answer sent with
	// bus.Reply, until ctx ends or 30s pass.
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler errors are logged by the bus, never redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is one event. Payload is JSON; Metadata carries the reply topic
// of a request.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is a live handler registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects the bus: in-process channels or NATS.
type EventBusConfig struct {
	Type string // channel, nats

	// ChannelBufferSize is the per-subscriber queue length
	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topic names for the assessment lifecycle.
const (
	TopicAssessmentScored = "redflag.assessment.scored"
	TopicReportRequested  = "redflag.report.requested"
	TopicReportReady      = "redflag.report.ready"
)

// QueueReportWorkers is the queue group report workers join.
const QueueReportWorkers = "redflag-report-workers"

// AssessmentEvent is the payload published on assessment topics.
type AssessmentEvent struct {
	AssessmentID string     `json:"assessmentId"`
	Score        int        `json:"score"`
	Band         Band       `json:"band"`
	Industry     string     `json:"industry"`
	ReportType   ReportType `json:"reportType"`
	Error        string     `json:"error,omitempty"`
}

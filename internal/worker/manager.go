package worker

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"yatube/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
)

// EventHandler handles one event. *Handler is the production implementation.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.FeedEvent) error
}

// Manager orchestrates worker goroutines that consume the feed stream.
type Manager struct {
	consumer     queue.Consumer
	handler      EventHandler
	workerCount  int
	batchSize    int64
	blockTime    time.Duration
	consumerBase string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
	// ConsumerName prefixes each worker's consumer name. Defaults to the hostname
	// so replicas keep separate pending lists.
	ConsumerName string
}

func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "yatube"
		}
		cfg.ConsumerName = host
	}

	return &Manager{
		consumer:     consumer,
		handler:      handler,
		workerCount:  cfg.WorkerCount,
		batchSize:    cfg.BatchSize,
		blockTime:    cfg.BlockTimeout,
		consumerBase: cfg.ConsumerName,
	}
}

// Start ensures the consumer group exists and launches the workers.
// Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed); err != nil {
		m.cancel()
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, m.consumerName(i))
	}

	log.Infof("[Manager] Started %d workers for stream=%s group=%s",
		m.workerCount, queue.StreamFeed, queue.ConsumerGroupFeed)
	return nil
}

// Stop cancels the workers and blocks until all have returned.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Info("[Manager] All workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	logger := log.WithFields(log.Fields{"worker": workerID, "consumer": consumerName})
	logger.Debug("[Worker] Started")

	// Crash recovery: finish what a previous run of this consumer left unacked.
	m.processPending(logger, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			logger.Debug("[Worker] Shutting down")
			return
		default:
			m.processMessages(logger, consumerName)
		}
	}
}

func (m *Manager) processPending(logger *log.Entry, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, consumerName, m.batchSize)
		if err != nil {
			logger.Warnf("[Worker] Error reading pending: %v", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		logger.Infof("[Worker] Processing %d pending messages", len(messages))
		if acked := m.handleMessages(logger, messages); acked == 0 {
			// The same batch would come back on the next read.
			logger.Warnf("[Worker] No pending message could be acked, moving on to new messages")
			return
		}
	}
}

func (m *Manager) processMessages(logger *log.Entry, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamFeed,
		queue.ConsumerGroupFeed,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		logger.Warnf("[Worker] Error reading: %v", err)
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) > 0 {
		m.handleMessages(logger, messages)
	}
}

// handleMessages acks every message, even when handling failed, so a poison
// event cannot be redelivered forever. It returns how many acks succeeded.
func (m *Manager) handleMessages(logger *log.Entry, messages []queue.Message) int {
	acked := 0
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			logger.Errorf("[Worker] Handler error msgID=%s: %v", msg.ID, err)
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, msg.ID); err != nil {
			logger.Errorf("[Worker] ACK error msgID=%s: %v", msg.ID, err)
			continue
		}
		acked++
	}
	return acked
}

func (m *Manager) consumerName(workerID int) string {
	return m.consumerBase + "-worker-" + strconv.Itoa(workerID)
}

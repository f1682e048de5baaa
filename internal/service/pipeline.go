package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "github.com/telaak/serial-gsm-rest/internal/errors"
	"github.com/telaak/serial-gsm-rest/internal/models"
)

// NotificationSink receives fire-and-forget event payloads for external
// subscribers. There is no acknowledgment contract.
type NotificationSink interface {
	Broadcast(ctx context.Context, payload interface{}) error
}

// MessageStore is the slice of the persistence layer the pipeline writes to.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.SMSMessage) (models.RowID, error)
	SaveSentMessage(ctx context.Context, message, recipient string) (models.RowID, error)
}

// ModemGateway is the slice of the gateway the pipeline consumes: its event
// channels plus device-inbox cleanup.
type ModemGateway interface {
	Received() <-chan []models.SMSMessage
	Sent() <-chan models.TransmissionResult
	DeleteMessage(ctx context.Context, index models.DeviceIndex) error
}

// NewMessageEvent is broadcast for every received message.
type NewMessageEvent struct {
	Type    string            `json:"type"`
	Message models.SMSMessage `json:"message"`
}

// SentMessageEvent is broadcast for every successfully transmitted segment.
type SentMessageEvent struct {
	Type        string                    `json:"type"`
	SentMessage models.TransmissionResult `json:"sentMessage"`
}

// Pipeline consumes gateway events and runs the notify→persist→cleanup
// workflow for each one.
//
// Fault isolation is per item: a failing step aborts the remaining steps for
// that message only, is logged, and is never compensated. A message can end
// up notified but not persisted, or persisted but still on the device (and
// thus re-delivered on the next poll). That end state is accepted; there is
// no reconciliation here.
type Pipeline struct {
	gateway ModemGateway
	store   MessageStore
	sink    NotificationSink
	logger  *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPipeline creates an ingestion pipeline. Start must be called to begin
// consuming events.
func NewPipeline(gateway ModemGateway, store MessageStore, sink NotificationSink, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		store:   store,
		sink:    sink,
		logger:  logger,
	}
}

// Start launches the consumption loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline is already running")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.consumeLoop()

	p.logger.Info("Ingestion pipeline started")
	return nil
}

// Stop halts consumption and waits for in-flight items to finish.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Ingestion pipeline stopped")
}

// consumeLoop dispatches every event into its own goroutine so that no item
// is serialized behind another and the gateway's event emission is never
// blocked.
func (p *Pipeline) consumeLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case messages, ok := <-p.gateway.Received():
			if !ok {
				return
			}
			for _, msg := range messages {
				p.wg.Add(1)
				go func(msg models.SMSMessage) {
					defer p.wg.Done()
					p.processReceived(p.ctx, msg)
				}(msg)
			}
		case result, ok := <-p.gateway.Sent():
			if !ok {
				return
			}
			p.wg.Add(1)
			go func(result models.TransmissionResult) {
				defer p.wg.Done()
				p.processSent(p.ctx, result)
			}(result)
		}
	}
}

// processReceived runs notify→persist→device-delete for one message. Any
// step failure skips the remaining steps for this message only; completed
// steps are not undone.
func (p *Pipeline) processReceived(ctx context.Context, msg models.SMSMessage) {
	fields := logrus.Fields{"sender": msg.Sender, "index": msg.Index}

	if err := p.sink.Broadcast(ctx, NewMessageEvent{Type: "newMessage", Message: msg}); err != nil {
		apperrors.LogError(p.logger, err, "Failed to broadcast received message", fields)
		return
	}

	rowID, err := p.store.SaveMessage(ctx, msg)
	if err != nil {
		apperrors.LogError(p.logger, err, "Failed to persist received message", fields)
		return
	}
	fields["rowid"] = rowID

	if err := p.gateway.DeleteMessage(ctx, msg.Index); err != nil {
		// The persisted row stays; the device copy will be seen again on
		// the next inbox poll.
		apperrors.LogError(p.logger, err, "Failed to delete message from device inbox", fields)
		return
	}

	p.logger.WithFields(fields).Debug("Received message ingested")
}

// processSent broadcasts and persists one transmission result. Failures are
// logged and swallowed; the transmission itself already happened.
func (p *Pipeline) processSent(ctx context.Context, result models.TransmissionResult) {
	fields := logrus.Fields{"recipient": result.Recipient, "messageId": result.MessageID}

	if err := p.sink.Broadcast(ctx, SentMessageEvent{Type: "sentMessage", SentMessage: result}); err != nil {
		apperrors.LogError(p.logger, err, "Failed to broadcast sent message", fields)
		return
	}

	if _, err := p.store.SaveSentMessage(ctx, result.Message, result.Recipient); err != nil {
		apperrors.LogError(p.logger, err, "Failed to persist sent message", fields)
		return
	}

	p.logger.WithFields(fields).Debug("Sent message recorded")
}

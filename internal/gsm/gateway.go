package gsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/telaak/serial-gsm-rest/internal/constants"
	apperrors "github.com/telaak/serial-gsm-rest/internal/errors"
	"github.com/telaak/serial-gsm-rest/internal/models"
	"github.com/telaak/serial-gsm-rest/pkg/modem/types"
)

// Gateway owns the modem connection lifecycle and exposes the command
// primitives. It initializes asynchronously: every operation waits on a
// readiness gate that opens exactly once, when the driver has been opened
// and initialized. Waiting operations are suspended, not spinning, and none
// is lost while waiting.
//
// Activity is announced on typed event channels: Received carries batches
// of newly arrived messages, Sent carries one result per successfully
// transmitted segment. The gateway never calls into its consumers.
type Gateway struct {
	driver types.Driver
	logger *logrus.Logger

	ready    chan struct{}
	received chan []models.SMSMessage
	sent     chan models.TransmissionResult

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewGateway creates a gateway over the given driver. Start must be called
// before the gateway is usable.
func NewGateway(driver types.Driver, logger *logrus.Logger) *Gateway {
	return &Gateway{
		driver:   driver,
		logger:   logger,
		ready:    make(chan struct{}),
		received: make(chan []models.SMSMessage, constants.DefaultReceivedEventBuffer),
		sent:     make(chan models.TransmissionResult, constants.DefaultSentEventBuffer),
	}
}

// Start launches asynchronous initialization. It returns immediately;
// operations issued before initialization completes block on the readiness
// gate.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("gateway is already running")
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.running = true

	g.wg.Add(1)
	go g.initialize()

	return nil
}

// Stop tears down the modem connection and the event forwarding loop.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return
	}
	g.cancel()
	if err := g.driver.Close(); err != nil {
		g.logger.WithError(err).Warn("Failed to close modem driver")
	}
	g.wg.Wait()
	g.running = false
}

func (g *Gateway) initialize() {
	defer g.wg.Done()

	if err := g.driver.Open(g.ctx); err != nil {
		// The gate stays shut: operations keep waiting, matching a modem
		// that never comes up. No retry.
		g.logger.WithError(err).Error("Failed to open modem connection")
		return
	}
	if err := g.driver.Initialize(g.ctx); err != nil {
		g.logger.WithError(err).Error("Failed to initialize modem")
		return
	}

	close(g.ready)
	g.logger.Info("Modem is ready")

	g.wg.Add(1)
	go g.forwardIncoming()
}

// forwardIncoming relays driver message announcements onto the gateway's
// received channel.
func (g *Gateway) forwardIncoming() {
	defer g.wg.Done()

	for {
		select {
		case <-g.ctx.Done():
			return
		case messages, ok := <-g.driver.Incoming():
			if !ok {
				return
			}
			select {
			case g.received <- messages:
			case <-g.ctx.Done():
				return
			}
		}
	}
}

// Received delivers batches of newly received messages.
func (g *Gateway) Received() <-chan []models.SMSMessage {
	return g.received
}

// Sent delivers one result per successfully transmitted segment.
func (g *Gateway) Sent() <-chan models.TransmissionResult {
	return g.sent
}

// awaitReady suspends until the readiness gate opens or the context ends.
func (g *Gateway) awaitReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeDeviceCommand, "canceled while waiting for modem readiness")
	}
}

// GetSimInbox returns every message currently stored in the device inbox,
// in device order.
func (g *Gateway) GetSimInbox(ctx context.Context) ([]models.SMSMessage, error) {
	if err := g.awaitReady(ctx); err != nil {
		return nil, err
	}
	inbox, err := g.driver.GetSimInbox(ctx)
	if err != nil {
		return nil, wrapDeviceError(err, "failed to read device inbox")
	}
	return inbox, nil
}

// SendSegment transmits one segment and, on success, emits a Sent event
// before returning.
func (g *Gateway) SendSegment(ctx context.Context, recipient, chunk string, silent bool) (models.TransmissionResult, error) {
	if err := g.awaitReady(ctx); err != nil {
		return models.TransmissionResult{}, err
	}

	result, err := g.driver.SendSMS(ctx, recipient, chunk, silent)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeTransmission {
			return result, err
		}
		return result, &apperrors.TransmissionError{Result: result, Cause: err}
	}

	g.emitSent(result)
	return result, nil
}

// SendMessage splits message into segments and transmits them concurrently.
// It succeeds only if every segment succeeds; on any failure it returns a
// PartialSendError carrying the segments that were delivered. Delivered
// segments are not retracted, and each of them has already emitted its Sent
// event.
func (g *Gateway) SendMessage(ctx context.Context, recipient, message string, silent bool) ([]models.TransmissionResult, error) {
	chunks := SplitMessage(message)

	results := make([]models.TransmissionResult, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			results[i], errs[i] = g.SendSegment(ctx, recipient, chunk, silent)
		}(i, chunk)
	}
	wg.Wait()

	sent := make([]models.TransmissionResult, 0, len(chunks))
	var firstErr error
	for i := range chunks {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		sent = append(sent, results[i])
	}

	if firstErr != nil {
		return sent, &apperrors.PartialSendError{Sent: sent, Cause: firstErr}
	}
	return results, nil
}

// ReadMessage reads the message at the given device inbox index. An empty
// device response is reported the same way as a device-side miss.
func (g *Gateway) ReadMessage(ctx context.Context, index models.DeviceIndex) (models.SMSMessage, error) {
	if err := g.awaitReady(ctx); err != nil {
		return models.SMSMessage{}, err
	}

	messages, err := g.driver.ReadSMSByIndex(ctx, index)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return models.SMSMessage{}, err
		}
		return models.SMSMessage{}, wrapDeviceError(err, "failed to read message")
	}
	if len(messages) == 0 {
		return models.SMSMessage{}, apperrors.New(apperrors.ErrCodeNotFound, "no message at requested index").WithContext("index", index)
	}
	return messages[len(messages)-1], nil
}

// DeleteMessage removes the message at the given device inbox index. A
// device error is reported as-is; it does not necessarily mean the slot was
// already empty.
func (g *Gateway) DeleteMessage(ctx context.Context, index models.DeviceIndex) error {
	if err := g.awaitReady(ctx); err != nil {
		return err
	}
	if err := g.driver.DeleteSMSByIndex(ctx, index); err != nil {
		return wrapDeviceError(err, "failed to delete message")
	}
	return nil
}

// DeleteAllMessages clears the entire device inbox. Irreversible.
func (g *Gateway) DeleteAllMessages(ctx context.Context) error {
	if err := g.awaitReady(ctx); err != nil {
		return err
	}
	if err := g.driver.DeleteAllSMS(ctx); err != nil {
		return wrapDeviceError(err, "failed to delete all messages")
	}
	return nil
}

// emitSent publishes a Sent event without ever blocking a transmission. The
// channel is generously buffered; a full buffer means the consumer is gone
// and the event is dropped with a warning.
func (g *Gateway) emitSent(result models.TransmissionResult) {
	select {
	case g.sent <- result:
	default:
		g.logger.WithField("recipient", result.Recipient).Warn("Sent event buffer full, dropping event")
	}
}

// wrapDeviceError keeps already-classified errors intact and folds anything
// else into a device command failure.
func wrapDeviceError(err error, message string) error {
	if apperrors.GetCode(err) != apperrors.ErrCodeInternalError {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeDeviceCommand, message)
}

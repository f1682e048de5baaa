package modem

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telaak/serial-gsm-rest/internal/constants"
	apperrors "github.com/telaak/serial-gsm-rest/internal/errors"
	"github.com/telaak/serial-gsm-rest/internal/models"
)

// CMS error codes for a missing or empty memory index.
const (
	cmsInvalidMemoryIndex = 321
	cmsMemoryIndexEmpty   = 322
)

// Client drives a GSM modem in AT text mode over a Transport. It implements
// types.Driver.
//
// A single serial line cannot interleave two command/response exchanges, so
// Client serializes exchanges on the wire with an internal mutex. Callers
// may still issue commands concurrently; ordering between them is
// unspecified.
type Client struct {
	dialer Dialer
	logger *logrus.Logger

	mu        sync.Mutex
	transport Transport

	lines    chan string
	prompts  chan struct{}
	incoming chan []models.SMSMessage

	smsc     string
	smscType string

	readCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewClient creates a modem client that connects through the given dialer.
func NewClient(dialer Dialer, logger *logrus.Logger) *Client {
	return &Client{
		dialer:   dialer,
		logger:   logger,
		lines:    make(chan string, 32),
		prompts:  make(chan struct{}, 1),
		incoming: make(chan []models.SMSMessage, constants.DefaultReceivedEventBuffer),
	}
}

// Open establishes the transport and starts the read loop.
func (c *Client) Open(ctx context.Context) error {
	transport, err := c.dialer.Dial(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeviceCommand, "failed to open modem connection")
	}

	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()

	readCtx, cancel := context.WithCancel(context.Background())
	c.readCancel = cancel

	c.wg.Add(1)
	go c.readLoop(readCtx)

	return nil
}

// Initialize runs the device initialization sequence: echo off, verbose
// errors, text mode, new-message indications, and a service-center query
// whose answer is attached to every parsed message.
func (c *Client) Initialize(ctx context.Context) error {
	for _, cmd := range []string{CmdEchoOff, CmdVerboseErrors, CmdSetTextMode, CmdNewMsgInd} {
		if _, err := c.command(ctx, cmd); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDeviceCommand, fmt.Sprintf("initialization command %s failed", cmd))
		}
	}

	data, err := c.command(ctx, CmdServiceCenter)
	if err != nil {
		c.logger.WithError(err).Warn("Service center query failed; message headers will carry an empty SMSC")
		return nil
	}
	for _, line := range data {
		if strings.HasPrefix(line, "+CSCA:") {
			c.smsc, c.smscType = parseServiceCenter(line)
		}
	}
	return nil
}

// GetSimInbox lists every message in the device inbox, in device order.
func (c *Client) GetSimInbox(ctx context.Context) ([]models.SMSMessage, error) {
	data, err := c.command(ctx, CmdListAll)
	if err != nil {
		return nil, err
	}
	return c.parseListing(data, "+CMGL:", true), nil
}

// SendSMS transmits one segment in text mode. Silent messages are sent as
// class 0 (flash). On device-reported failure the returned result carries
// the device's response.
func (c *Client) SendSMS(ctx context.Context, recipient, text string, silent bool) (models.TransmissionResult, error) {
	result := models.TransmissionResult{
		Message:   text,
		Recipient: recipient,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dcs := "AT+CSMP=17,167,0,0"
	if silent {
		dcs = "AT+CSMP=17,167,0,16"
	}
	if _, err := c.exchange(ctx, dcs); err != nil {
		result.Response = err.Error()
		return result, &apperrors.TransmissionError{Result: result, Cause: err}
	}

	c.drain()
	if err := c.writeLine(fmt.Sprintf("AT+CMGS=%q", recipient)); err != nil {
		result.Response = err.Error()
		return result, &apperrors.TransmissionError{Result: result, Cause: err}
	}

	if err := c.awaitPrompt(ctx); err != nil {
		result.Response = err.Error()
		return result, &apperrors.TransmissionError{Result: result, Cause: err}
	}

	if _, err := c.transport.Write([]byte(text + CtrlZ)); err != nil {
		result.Response = err.Error()
		return result, &apperrors.TransmissionError{Result: result, Cause: fmt.Errorf("write message body: %w", err)}
	}

	data, err := c.collect(ctx)
	for _, line := range data {
		if strings.HasPrefix(line, "+CMGS:") {
			result.MessageID = strings.TrimSpace(strings.TrimPrefix(line, "+CMGS:"))
			result.Response = line
		}
	}
	if err != nil {
		result.Response = err.Error()
		return result, &apperrors.TransmissionError{Result: result, Cause: err}
	}
	if result.Response == "" {
		result.Response = OK
	}
	return result, nil
}

// ReadSMSByIndex reads the message stored at index. A non-error empty
// listing means the slot is empty.
func (c *Client) ReadSMSByIndex(ctx context.Context, index models.DeviceIndex) ([]models.SMSMessage, error) {
	data, err := c.command(ctx, fmt.Sprintf("AT+CMGR=%d", index))
	if err != nil {
		return nil, err
	}
	messages := c.parseListing(data, "+CMGR:", false)
	for i := range messages {
		messages[i].Index = index
	}
	return messages, nil
}

// DeleteSMSByIndex removes the message at index from the device inbox.
func (c *Client) DeleteSMSByIndex(ctx context.Context, index models.DeviceIndex) error {
	_, err := c.command(ctx, fmt.Sprintf("AT+CMGD=%d", index))
	return err
}

// DeleteAllSMS clears the entire device inbox. Irreversible.
func (c *Client) DeleteAllSMS(ctx context.Context) error {
	_, err := c.command(ctx, "AT+CMGD=1,4")
	return err
}

// Incoming delivers batches of newly received messages announced via +CMTI.
func (c *Client) Incoming() <-chan []models.SMSMessage {
	return c.incoming
}

// Close stops the read loop and tears down the transport.
func (c *Client) Close() error {
	if c.readCancel != nil {
		c.readCancel()
	}

	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.mu.Unlock()

	var err error
	if transport != nil {
		err = transport.Close()
	}
	c.wg.Wait()
	return err
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return
	}

	scanner := bufio.NewScanner(transport)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	scanner.Split(ATSplitter)

	for scanner.Scan() {
		// The prompt token is whitespace; classify before trimming.
		if scanner.Text() == Prompt {
			select {
			case c.prompts <- struct{}{}:
			default:
			}
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch Classify(line) {
		case TypeURC:
			c.handleURC(ctx, line)
		default:
			select {
			case c.lines <- line:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.WithError(err).Error("Modem read loop terminated")
	}
}

// handleURC reacts to unsolicited result codes. A +CMTI announcement names
// the inbox slot of a newly received message; the message is read in a
// separate goroutine so the read loop never blocks behind a command
// exchange.
func (c *Client) handleURC(ctx context.Context, line string) {
	if !strings.HasPrefix(line, UrcNewMsg) {
		c.logger.WithField("urc", line).Debug("Ignoring unsolicited result code")
		return
	}

	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		c.logger.WithField("urc", line).Warn("Malformed +CMTI indication")
		return
	}
	index, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
	if err != nil {
		c.logger.WithField("urc", line).Warn("Malformed +CMTI index")
		return
	}

	go func() {
		readCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.DefaultCommandTimeoutSec)*time.Second)
		defer cancel()

		messages, err := c.ReadSMSByIndex(readCtx, models.DeviceIndex(index))
		if err != nil {
			c.logger.WithError(err).WithField("index", index).Error("Failed to read announced message")
			return
		}
		if len(messages) == 0 {
			c.logger.WithField("index", index).Warn("Announced message slot was empty")
			return
		}

		select {
		case c.incoming <- messages:
		case <-ctx.Done():
		}
	}()
}

// command runs one full command/response exchange under the wire lock.
func (c *Client) command(ctx context.Context, cmd string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange(ctx, cmd)
}

func (c *Client) exchange(ctx context.Context, cmd string) ([]string, error) {
	c.drain()
	if err := c.writeLine(cmd); err != nil {
		return nil, err
	}
	return c.collect(ctx)
}

func (c *Client) writeLine(cmd string) error {
	if c.transport == nil {
		return apperrors.New(apperrors.ErrCodeDeviceCommand, "modem transport is not open")
	}
	if _, err := c.transport.Write([]byte(cmd + CRLF)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeviceCommand, fmt.Sprintf("failed to write command %s", cmd))
	}
	return nil
}

// collect gathers intermediate lines until a final response arrives.
func (c *Client) collect(ctx context.Context) ([]string, error) {
	var data []string

	timer := time.NewTimer(time.Duration(constants.DefaultCommandTimeoutSec) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return data, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeDeviceCommand, "command canceled")
		case <-timer.C:
			return data, apperrors.New(apperrors.ErrCodeDeviceCommand, "timed out waiting for modem response")
		case line := <-c.lines:
			if Classify(line) != TypeFinal {
				data = append(data, line)
				continue
			}
			if IsErrorFinal(line) {
				return data, newDeviceError(line)
			}
			return data, nil
		}
	}
}

func (c *Client) awaitPrompt(ctx context.Context) error {
	timer := time.NewTimer(time.Duration(constants.DefaultCommandTimeoutSec) * time.Second)
	defer timer.Stop()

	select {
	case <-c.prompts:
		return nil
	case line := <-c.lines:
		if Classify(line) == TypeFinal && IsErrorFinal(line) {
			return newDeviceError(line)
		}
		return apperrors.New(apperrors.ErrCodeDeviceCommand, fmt.Sprintf("unexpected response before prompt: %s", line))
	case <-timer.C:
		return apperrors.New(apperrors.ErrCodeDeviceCommand, "timed out waiting for SMS prompt")
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeDeviceCommand, "command canceled")
	}
}

func (c *Client) drain() {
	for {
		select {
		case <-c.lines:
		case <-c.prompts:
		default:
			return
		}
	}
}

// newDeviceError maps a final error line to the error taxonomy. CMS codes
// for an invalid or empty memory index mean "no message there", which
// callers treat as not found rather than a device fault.
func newDeviceError(line string) error {
	if strings.HasPrefix(line, CmsError) {
		codeStr := strings.TrimSpace(strings.TrimPrefix(line, CmsError))
		if code, err := strconv.Atoi(codeStr); err == nil {
			if code == cmsInvalidMemoryIndex || code == cmsMemoryIndexEmpty {
				return apperrors.New(apperrors.ErrCodeNotFound, "no message at requested index")
			}
		}
	}
	return apperrors.New(apperrors.ErrCodeDeviceCommand, fmt.Sprintf("device reported failure: %s", line))
}

// parseListing turns +CMGL/+CMGR output into messages. Listing output
// alternates between header lines and body lines; bodies may span multiple
// lines and are joined with newlines.
func (c *Client) parseListing(data []string, header string, withIndex bool) []models.SMSMessage {
	messages := []models.SMSMessage{}
	var current *models.SMSMessage
	var body []string

	flush := func() {
		if current != nil {
			current.Message = strings.Join(body, "\n")
			messages = append(messages, *current)
		}
		current = nil
		body = nil
	}

	for _, line := range data {
		if !strings.HasPrefix(line, header) {
			if current != nil {
				body = append(body, line)
			}
			continue
		}

		flush()
		msg, err := c.parseHeaderLine(strings.TrimSpace(strings.TrimPrefix(line, header)), withIndex)
		if err != nil {
			c.logger.WithError(err).WithField("line", line).Warn("Skipping unparseable listing entry")
			continue
		}
		current = &msg
	}
	flush()

	return messages
}

// parseHeaderLine parses the argument list of a +CMGL (withIndex) or +CMGR
// entry: [index,]status,sender,[alpha],timestamp.
func (c *Client) parseHeaderLine(args string, withIndex bool) (models.SMSMessage, error) {
	fields := splitQuotedFields(args)
	if withIndex {
		if len(fields) < 1 {
			return models.SMSMessage{}, fmt.Errorf("empty listing header")
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return models.SMSMessage{}, fmt.Errorf("bad message index %q", fields[0])
		}
		msg, err := c.parseHeaderFields(fields[1:])
		msg.Index = models.DeviceIndex(index)
		return msg, err
	}
	return c.parseHeaderFields(fields)
}

func (c *Client) parseHeaderFields(fields []string) (models.SMSMessage, error) {
	if len(fields) < 2 {
		return models.SMSMessage{}, fmt.Errorf("listing header has %d fields, want at least 2", len(fields))
	}

	msg := models.SMSMessage{
		Sender:    fields[1],
		MsgStatus: messageStatusCode(fields[0]),
		Header: models.SMSHeader{
			Encoding: "7bit",
			SMSC:     c.smsc,
			SMSCType: c.smscType,
			SMSCPlan: "ISDN",
		},
	}

	if len(fields) >= 4 && fields[3] != "" {
		ts, err := parseTimestamp(fields[3])
		if err != nil {
			c.logger.WithError(err).Debug("Unparseable message timestamp; falling back to receive time")
			ts = time.Now()
		}
		msg.DateTimeSent = ts
	} else {
		msg.DateTimeSent = time.Now()
	}

	return msg, nil
}

func messageStatusCode(status string) int {
	switch status {
	case "REC UNREAD":
		return 0
	case "REC READ":
		return 1
	case "STO UNSENT":
		return 2
	case "STO SENT":
		return 3
	default:
		return 4
	}
}

// splitQuotedFields splits a comma-separated AT argument list, honoring
// double quotes and stripping them from the result.
func splitQuotedFields(s string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))
	return fields
}

// parseServiceCenter parses `+CSCA: "+358501234567",145`.
func parseServiceCenter(line string) (smsc, smscType string) {
	fields := splitQuotedFields(strings.TrimSpace(strings.TrimPrefix(line, "+CSCA:")))
	if len(fields) == 0 || fields[0] == "" {
		return "", ""
	}
	smsc = fields[0]
	smscType = "NATIONAL"
	if len(fields) >= 2 && fields[1] == "145" {
		smscType = "INTERNATIONAL"
	}
	return smsc, smscType
}

// parseTimestamp parses the text-mode service center timestamp
// "yy/MM/dd,hh:mm:ss±zz" where zz is the timezone in quarter hours.
func parseTimestamp(s string) (time.Time, error) {
	if len(s) < 3 {
		return time.Time{}, fmt.Errorf("timestamp too short: %q", s)
	}

	zonePart := s[len(s)-3:]
	base := s[:len(s)-3]

	sign := 1
	switch zonePart[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return time.Time{}, fmt.Errorf("missing timezone in timestamp %q", s)
	}

	quarters, err := strconv.Atoi(zonePart[1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timezone in timestamp %q", s)
	}

	loc := time.FixedZone("", sign*quarters*15*60)
	return time.ParseInLocation("06/01/02,15:04:05", base, loc)
}

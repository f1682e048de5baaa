package modem

import "strings"

// AT protocol vocabulary. The driver runs the modem in "No Echo" text mode
// (ATE0, AT+CMGF=1); the tokenizer and classifier below assume that mode.
const (
	// Terminal control
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1A"

	// Response codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Commands
	CmdEchoOff       = "ATE0"
	CmdSetTextMode   = "AT+CMGF=1"
	CmdVerboseErrors = "AT+CMEE=2"
	CmdNewMsgInd     = "AT+CNMI=2,1,0,2,1"
	CmdServiceCenter = "AT+CSCA?"
	CmdListAll       = `AT+CMGL="ALL"`

	// URCs (Unsolicited Result Codes)
	UrcNewMsg         = "+CMTI:"
	UrcMessageReport  = "+CDSI:"
	UrcSignalStrength = "+CSQ:"
	UrcCall           = "RING"
)

// ResponseType classifies modem output lines for flow control.
type ResponseType int

const (
	// TypeFinal terminates a command exchange (OK, ERROR, +CMS ERROR: ...).
	TypeFinal ResponseType = iota

	// TypeURC is an asynchronous notification unrelated to the command in
	// flight (+CMTI: new message, RING).
	TypeURC

	// TypeData is intermediate command output (+CMGL rows, message bodies).
	TypeData

	// TypePrompt is the "> " SMS composition prompt.
	TypePrompt
)

// Classify determines how a modem output line should be routed.
func Classify(line string) ResponseType {
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	case Prompt:
		return TypePrompt
	}
	if strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError) {
		return TypeFinal
	}
	if strings.HasPrefix(line, UrcNewMsg) || strings.HasPrefix(line, UrcMessageReport) || line == UrcCall {
		return TypeURC
	}
	return TypeData
}

// IsErrorFinal reports whether a final line indicates command failure.
func IsErrorFinal(line string) bool {
	return line != OK && Classify(line) == TypeFinal
}

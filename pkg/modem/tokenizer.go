package modem

import (
	"bytes"
)

// ATSplitter is a bufio.SplitFunc for modem output in No Echo mode. It
// splits on CRLF but also recognizes the SMS composition prompt, which the
// modem emits without line termination.
func ATSplitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// The prompt arrives bare; waiting for a CRLF would deadlock the send.
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[:len(Prompt)], nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), bytes.TrimRight(data[:i], "\r"), nil
	}

	if atEOF {
		return len(data), data, nil
	}

	// Request more data.
	return 0, nil, nil
}

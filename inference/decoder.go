package inference

import (
	"encoding/json"
	"strings"
)

// Kind discriminates decoded stream events.
type Kind int

const (
	// KindDelta carries an incremental content fragment.
	KindDelta Kind = iota
	// KindEnd marks the normal end of the stream.
	KindEnd
	// KindError marks a failed stream. The decoder never produces it; the
	// controller injects it when the transport fails.
	KindError
)

// Event is one decoded unit derived from the raw byte stream.
type Event struct {
	Kind Kind
	Text string
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Decoder turns raw byte chunks into discrete stream events. It keeps a
// single text buffer for bytes that have not yet resolved into a complete
// line, so no event is ever split across two deliveries and no data is lost
// across chunk boundaries.
type Decoder struct {
	buf  string
	done bool
}

// NewDecoder creates a decoder for one stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Done reports whether the end sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends a raw chunk to the buffer and returns the events completed by
// it. After the end sentinel, further chunks are ignored.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	d.buf += string(chunk)

	var events []Event
	for {
		idx := strings.Index(d.buf, "\n")
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, dataPrefix) {
			continue
		}

		payload := strings.TrimPrefix(trimmed, dataPrefix)
		if payload == doneSentinel {
			d.done = true
			events = append(events, Event{Kind: KindEnd})
			return events
		}

		var sc StreamChunk
		if err := json.Unmarshal([]byte(payload), &sc); err != nil {
			// Upstream framing can split one data line across deliveries,
			// leaving a payload that does not parse yet. Push the line back
			// with its terminator and resume on the next chunk; dropping it
			// would corrupt the message for good since there is no
			// retransmission.
			d.buf = line + "\n" + d.buf
			break
		}

		if text := sc.DeltaContent(); text != "" {
			events = append(events, Event{Kind: KindDelta, Text: text})
		}
	}
	return events
}

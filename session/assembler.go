// Package session owns conversation state: it assembles streamed assistant
// replies, drives the one in-flight request per session, and persists
// sessions with a TTL.
package session

import "strings"

// CaptureMarker is the inline control marker the assistant emits to signal
// contact capture. It is stripped before content is ever shown.
const CaptureMarker = "<CAPTURE_MODE>"

// Assembler folds incremental content fragments into the growing text of the
// current assistant message and detects the capture marker.
type Assembler struct {
	acc        string
	markerSeen bool
}

// NewAssembler creates an assembler for one stream.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Append adds a fragment and returns the visible content so far. The marker
// check always runs against the full accumulator, so a marker split across
// two fragments is still caught, and never leaks into the returned text.
func (a *Assembler) Append(fragment string) string {
	a.acc += fragment
	if strings.Contains(a.acc, CaptureMarker) {
		a.acc = strings.ReplaceAll(a.acc, CaptureMarker, "")
		a.markerSeen = true
	}
	return a.acc
}

// MarkerSeen reports whether the capture marker appeared during this stream.
func (a *Assembler) MarkerSeen() bool {
	return a.markerSeen
}

// Visible returns the accumulated content with the marker stripped.
func (a *Assembler) Visible() string {
	return a.acc
}

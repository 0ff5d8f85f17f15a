// Package sse reassembles Server-Sent Events from arbitrary byte chunks.
//
// A caller feeds raw bytes as they arrive off the wire and receives complete
// Events back, regardless of how the underlying transport happened to split
// them across TCP segments. The provider backends in internal/agent/providers
// do not use it; each consumes its SDK's own stream decoder.
package sse

import "strings"

// Event is one reassembled server-sent event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry string

	// Terminal is true when Data equals the "[DONE]" sentinel some
	// providers (notably OpenAI) emit to mark stream end. Providers that
	// never send it must treat reader EOF as terminal instead.
	Terminal bool
}

// Parser is a stateful, single-threaded line-buffering feeder. It is not
// safe for concurrent use; each stream gets its own Parser.
type Parser struct {
	buf        []byte
	eventField string
	dataLines  []string
	idField    string
	retryField string
	sawData    bool
}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends bytes to the internal buffer and returns every complete event
// extracted so far. A trailing partial line, if any, remains buffered for
// the next call.
func (p *Parser) Feed(chunk []byte) []Event {
	if len(chunk) > 0 {
		p.buf = append(p.buf, chunk...)
	}

	var events []Event
	for {
		idx := indexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		if len(line) == 0 {
			if ev, ok := p.finalize(); ok {
				events = append(events, ev)
			}
			continue
		}

		p.consumeLine(string(line))
	}
	return events
}

// HasBuffered reports whether any partial line or in-progress event state
// is currently held.
func (p *Parser) HasBuffered() bool {
	return len(p.buf) > 0 || p.sawData || p.eventField != "" || p.idField != "" || p.retryField != ""
}

// Clear discards all buffered bytes and in-progress event state.
func (p *Parser) Clear() {
	p.buf = nil
	p.resetEvent()
}

func (p *Parser) consumeLine(line string) {
	if strings.HasPrefix(line, ":") {
		return // comment line
	}

	field, value := splitField(line)
	switch field {
	case "event":
		p.eventField = value
	case "data":
		p.dataLines = append(p.dataLines, value)
		p.sawData = true
	case "id":
		p.idField = value
	case "retry":
		p.retryField = value
	default:
		// unknown fields are ignored
	}
}

func (p *Parser) finalize() (Event, bool) {
	if !p.sawData {
		p.resetEvent()
		return Event{}, false
	}

	data := strings.Join(p.dataLines, "\n")
	ev := Event{
		Event:    p.eventField,
		Data:     data,
		ID:       p.idField,
		Retry:    p.retryField,
		Terminal: data == "[DONE]",
	}
	p.resetEvent()
	return ev, true
}

func (p *Parser) resetEvent() {
	p.eventField = ""
	p.dataLines = nil
	p.idField = ""
	p.retryField = ""
	p.sawData = false
}

// splitField splits "field: value" on the first colon; the value loses at
// most one leading space. A line with no colon is the field name with an
// empty value.
func splitField(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	field = line[:i]
	value = line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

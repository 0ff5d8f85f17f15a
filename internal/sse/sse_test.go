package sse

import (
	"reflect"
	"testing"
)

func TestFeedSplitAcrossChunks(t *testing.T) {
	p := NewParser()
	var events []Event
	events = append(events, p.Feed([]byte("data: hel"))...)
	events = append(events, p.Feed([]byte("lo world\n\n"))...)

	want := []Event{{Data: "hello world"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedSplitMidToken(t *testing.T) {
	p := NewParser()
	var events []Event
	events = append(events, p.Feed([]byte(`data: {`))...)
	events = append(events, p.Feed([]byte(`"a":`))...)
	events = append(events, p.Feed([]byte("1}\n\n"))...)

	want := []Event{{Data: `{"a":1}`}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedMultiLineData(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: line one\ndata: line two\n\n"))
	want := []Event{{Data: "line one\nline two"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedEmptyAndNewlineProduceNoEvents(t *testing.T) {
	p := NewParser()
	if ev := p.Feed([]byte("")); len(ev) != 0 {
		t.Fatalf("expected no events for empty feed, got %+v", ev)
	}
	if p.HasBuffered() {
		t.Fatalf("expected no buffered state after empty feed")
	}
	if ev := p.Feed([]byte("\n")); len(ev) != 0 {
		t.Fatalf("expected no events for bare newline, got %+v", ev)
	}
	if p.HasBuffered() {
		t.Fatalf("expected no buffered state after bare newline")
	}
}

func TestFeedCommentLinesIgnored(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte(": this is a comment\ndata: hi\n\n"))
	want := []Event{{Data: "hi"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedUnknownFieldsIgnored(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("foo: bar\ndata: hi\n\n"))
	want := []Event{{Data: "hi"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedBlankLineWithoutDataDiscardsPartial(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("event: ping\n\ndata: hi\n\n"))
	want := []Event{{Data: "hi"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("got %+v, want %+v", events, want)
	}
}

func TestFeedMultipleEventsOneChunk(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: one\n\ndata: two\n\ndata: three\n\n"))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, want := range []string{"one", "two", "three"} {
		if events[i].Data != want {
			t.Fatalf("event %d: got %q, want %q", i, events[i].Data, want)
		}
	}
}

func TestFeedTrailingPartialLineStaysBuffered(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: complete\n\ndata: partial"))
	if len(events) != 1 || events[0].Data != "complete" {
		t.Fatalf("got %+v", events)
	}
	if !p.HasBuffered() {
		t.Fatalf("expected partial line to remain buffered")
	}
	events = p.Feed([]byte("\n\n"))
	if len(events) != 1 || events[0].Data != "partial" {
		t.Fatalf("got %+v", events)
	}
}

func TestFeedDoneSentinelIsTerminal(t *testing.T) {
	p := NewParser()
	events := p.Feed([]byte("data: [DONE]\n\n"))
	if len(events) != 1 || !events[0].Terminal {
		t.Fatalf("expected terminal event, got %+v", events)
	}
}

// TestFeedWholeVsSplitEquivalence checks property 7: splitting a valid
// stream at any byte boundary must not change the events produced.
func TestFeedWholeVsSplitEquivalence(t *testing.T) {
	stream := []byte("event: message\ndata: part one\ndata: part two\nid: 42\n\ndata: second event\n\n")

	whole := NewParser().Feed(stream)

	for split := 0; split <= len(stream); split++ {
		p := NewParser()
		var got []Event
		got = append(got, p.Feed(stream[:split])...)
		got = append(got, p.Feed(stream[split:])...)
		if !reflect.DeepEqual(got, whole) {
			t.Fatalf("split at %d: got %+v, want %+v", split, got, whole)
		}
	}
}

func TestClearResetsState(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("data: partial"))
	if !p.HasBuffered() {
		t.Fatalf("expected buffered state before Clear")
	}
	p.Clear()
	if p.HasBuffered() {
		t.Fatalf("expected no buffered state after Clear")
	}
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nopWriteCloser struct {
	*bytes.Buffer
}

func (nopWriteCloser) Close() error { return nil }

func newBufferedLogger(cfg Config) (*Logger, *nopWriteCloser) {
	buf := &nopWriteCloser{&bytes.Buffer{}}
	cfg.Enabled = true
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	return &Logger{
		config:     cfg,
		output:     buf,
		eventTypes: make(map[EventType]bool),
		buffer:     make(chan *Event, 10),
		done:       make(chan struct{}),
	}, buf
}

func TestNewLogger_Disabled(t *testing.T) {
	logger, err := NewLogger(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Log(context.Background(), &Event{Type: EventPermissionGranted})
	if err := logger.Close(); err != nil {
		t.Errorf("unexpected error closing disabled logger: %v", err)
	}
}

func TestNewLogger_InvalidOutput(t *testing.T) {
	if _, err := NewLogger(Config{Enabled: true, Output: "invalid://path"}); err == nil {
		t.Error("expected error for invalid output")
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	logger, err := NewLogger(Config{
		Enabled: true,
		Output:  "file:" + logPath,
		Format:  FormatJSON,
		Level:   LevelInfo,
	})
	if err != nil {
		t.Fatalf("failed to create logger with file output: %v", err)
	}

	logger.LogPermissionDecision(context.Background(), "sess-1", "bash", "call-1", "auto_approved", true, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	if err := logger.Close(); err != nil {
		t.Errorf("error closing logger: %v", err)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
}

func TestLogPermissionDecision_GrantedVsDenied(t *testing.T) {
	tests := []struct {
		name      string
		granted   bool
		eventType EventType
		level     Level
	}{
		{name: "granted", granted: true, eventType: EventPermissionGranted, level: LevelInfo},
		{name: "denied", granted: false, eventType: EventPermissionDenied, level: LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newBufferedLogger(Config{Level: LevelInfo})

			logger.LogPermissionDecision(context.Background(), "sess-1", "bash", "call-1", "auto_approved", tt.granted, 10*time.Millisecond)

			select {
			case event := <-logger.buffer:
				if event.Type != tt.eventType {
					t.Errorf("expected %s, got %s", tt.eventType, event.Type)
				}
				if event.Level != tt.level {
					t.Errorf("expected %s, got %s", tt.level, event.Level)
				}
				if event.Details["granted"] != tt.granted {
					t.Errorf("expected granted=%v in details", tt.granted)
				}
				if event.SessionID != "sess-1" {
					t.Errorf("expected session id to be preserved, got %q", event.SessionID)
				}
				if event.Duration != 10*time.Millisecond {
					t.Errorf("expected duration to be preserved, got %s", event.Duration)
				}
			case <-time.After(100 * time.Millisecond):
				t.Fatal("expected event in buffer")
			}
		})
	}
}

func TestLogger_EventTypeFilter(t *testing.T) {
	logger, _ := newBufferedLogger(Config{Level: LevelInfo})
	logger.eventTypes[EventPermissionGranted] = true

	logger.LogPermissionDecision(context.Background(), "sess-1", "bash", "", "approval_denied", false, 0)
	logger.LogPermissionDecision(context.Background(), "sess-1", "bash", "", "auto_approved", true, 0)

	select {
	case event := <-logger.buffer:
		if event.Type != EventPermissionGranted {
			t.Errorf("expected only EventPermissionGranted to pass the filter, got %s", event.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected an event in the buffer")
	}

	select {
	case event := <-logger.buffer:
		t.Fatalf("expected the filtered event type not to reach the buffer, got %+v", event)
	default:
	}
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		configLevel Level
		eventLevel  Level
		shouldLog   bool
	}{
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelInfo, true},
		{LevelInfo, LevelWarn, true},
		{LevelWarn, LevelInfo, false},
		{LevelWarn, LevelWarn, true},
	}

	for _, tt := range tests {
		logger := &Logger{config: Config{Enabled: true, Level: tt.configLevel}}
		if got := logger.shouldLog(tt.eventLevel); got != tt.shouldLog {
			t.Errorf("shouldLog(%s) with config level %s = %v, want %v", tt.eventLevel, tt.configLevel, got, tt.shouldLog)
		}
	}
}

func TestLogger_BufferFullDoesNotBlock(t *testing.T) {
	logger, _ := newBufferedLogger(Config{Level: LevelInfo, BufferSize: 1})
	logger.buffer = make(chan *Event, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			logger.Log(context.Background(), &Event{Type: EventPermissionGranted, Level: LevelInfo})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Log() blocked when the buffer was full")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled {
		t.Error("expected audit logging to be enabled by default")
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected FormatJSON, got %v", cfg.Format)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %v", cfg.SampleRate)
	}
	if cfg.BufferSize != 1000 {
		t.Errorf("expected BufferSize 1000, got %d", cfg.BufferSize)
	}
}

func TestEvent_Marshaling(t *testing.T) {
	event := &Event{
		ID:         "evt-1",
		Type:       EventPermissionDenied,
		Level:      LevelWarn,
		Timestamp:  time.Now(),
		SessionID:  "sess-1",
		ToolName:   "bash",
		ToolCallID: "call-1",
		Action:     "approval_denied",
		Duration:   time.Second,
		Details:    map[string]any{"granted": false},
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if decoded.ToolName != event.ToolName || decoded.Action != event.Action {
		t.Errorf("round-tripped event does not match: %+v", decoded)
	}
}

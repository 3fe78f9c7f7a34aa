package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func sampleEvent() Event {
	return Event{
		Time:        time.Date(2017, 3, 1, 12, 0, 5, 123456000, time.Local),
		Kind:        KindEnd,
		Key:         "GLM_s2017060120000",
		Product:     "GLM Flash Data",
		DatasetTime: time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC),
		Location:    "/out/OR_GLM.nc",
	}
}

func TestEvent_String(t *testing.T) {
	want := "[2017-03-01 12:00:05.123456] : Dataset End : GLM Flash Data : 2017-03-01 12:00:00 : /out/OR_GLM.nc"
	if got := sampleEvent().String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestLog_Record(t *testing.T) {
	var buf bytes.Buffer
	l := newLog(nopCloser{&buf})

	e := sampleEvent()
	if err := l.Record(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != e.String()+"\n" {
		t.Fatalf("expected %q, got %q", e.String()+"\n", got)
	}
}

func TestNewLog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event", "grb-events.log")
	l, err := NewLog(LogConfig{Path: path, MaxSizeMB: 1, MaxBackups: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	if !strings.Contains(string(data), "Dataset End : GLM Flash Data") {
		t.Fatalf("unexpected event log %q", data)
	}

	if _, err := NewLog(LogConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka_Record(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w, config: KafkaConfig{Topic: "grb-events"}}

	e := sampleEvent()
	if err := k.Record(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != e.Key {
		t.Errorf("expected key %q, got %q", e.Key, msg.Key)
	}
	var got Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != KindEnd || got.Location != e.Location {
		t.Errorf("unexpected event %+v", got)
	}

	w.err = errors.New("broker down")
	if err := k.Record(context.Background(), e); err == nil {
		t.Fatal("expected publish error")
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to close, got %v", err)
	}
}

func TestNewKafka_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     KafkaConfig
		wantErr bool
	}{
		{"missing brokers", KafkaConfig{Topic: "t"}, true},
		{"missing topic", KafkaConfig{Brokers: []string{"localhost:9092"}}, true},
		{"valid minimal", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, false},
		{"gzip", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "gzip"}, false},
		{"invalid compression", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "zstd2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := NewKafka(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewKafka() error = %v, wantErr %v", err, tt.wantErr)
			}
			if k != nil {
				k.Close()
			}
		})
	}
}

type failing struct{ closed bool }

func (f *failing) Record(context.Context, Event) error { return errors.New("nope") }
func (f *failing) Close() error {
	f.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	f := &failing{}
	m := Multi{f, newLog(nopCloser{&buf})}

	if err := m.Record(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected the failing recorder's error")
	}
	if buf.Len() == 0 {
		t.Fatal("a failing recorder must not stop the others")
	}
	if err := m.Close(); err != nil || !f.closed {
		t.Fatalf("expected every recorder closed, got %v", err)
	}
}

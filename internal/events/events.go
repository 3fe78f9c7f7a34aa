// Package events records product lifecycle events: a product starting,
// ending, failing, or timing out. Events go to a rotating event log and,
// optionally, to Kafka.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Kind is the event title.
type Kind string

const (
	KindStart   Kind = "Dataset Start"
	KindEnd     Kind = "Dataset End"
	KindError   Kind = "Dataset Encountered Unrecoverable Error"
	KindTimeout Kind = "Dataset Timed Out"
)

// Layouts of the two timestamps in an event line.
const (
	EventTimeLayout   = "2006-01-02 15:04:05.000000"
	DatasetTimeLayout = "2006-01-02 15:04:05"
)

// Event is one lifecycle transition of a product.
type Event struct {
	Time        time.Time `json:"time"`
	Kind        Kind      `json:"kind"`
	Key         string    `json:"key"`
	Product     string    `json:"product"`
	DatasetTime time.Time `json:"dataset_time"`
	Location    string    `json:"location"`
}

// New creates an event stamped with the current time.
func New(kind Kind, key, product string, datasetTime time.Time, location string) Event {
	return Event{
		Time:        time.Now(),
		Kind:        kind,
		Key:         key,
		Product:     product,
		DatasetTime: datasetTime,
		Location:    location,
	}
}

// Message renders everything after the event time:
// "title : product : dataset time : location".
func (e Event) Message() string {
	return fmt.Sprintf("%s : %s : %s : %s", e.Kind, e.Product, e.DatasetTime.Format(DatasetTimeLayout), e.Location)
}

func (e Event) String() string {
	return "[" + e.Time.Format(EventTimeLayout) + "] : " + e.Message()
}

// Recorder publishes events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// Multi fans an event out to several recorders. A failing recorder does
// not stop the others.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit records e and logs a failure instead of returning it.
func Emit(ctx context.Context, r Recorder, e Event) {
	if err := r.Record(ctx, e); err != nil {
		slog.Warn("failed to record event", "kind", e.Kind, "key", e.Key, "error", err)
	}
}

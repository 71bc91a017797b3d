package payload

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	"github.com/tinylib/msgp/msgp"
)

var fluentTags = []string{
	"app.access", "app.error", "app.metrics", "system.audit",
}

var fluentFieldKeys = []string{"host", "method", "status", "latency_ms", "user", "region"}
var fluentFieldValues = []string{
	"10.0.0.4", "GET", "POST", "200", "404", "503", "12", "87", "314",
	"alice", "bob", "us-east-1", "eu-west-1",
}

// fluentEpochSeconds anchors generated event times to a fixed point so
// reproducing a cache from a seed never depends on wall-clock time.
const fluentEpochSeconds = 1577836800 // 2020-01-01T00:00:00Z

type fluentField struct {
	Key   string
	Value string
}

// Fluent renders Fluentd Forward Protocol "Message Mode" entries
// ([tag, time, record]) back to back as raw MessagePack, which is how the
// forward protocol frames a stream of events on one connection — each
// top-level MessagePack value is self-delimiting, so no extra separator is
// needed between records.
type Fluent struct{}

// Serialize appends as many Message-Mode records as fit within sizeHint.
func (Fluent) Serialize(rng *rand.Rand, sizeHint int, out *bytes.Buffer) error {
	for {
		tag := fluentTags[rng.IntN(len(fluentTags))]
		eventTime := fluentEpochSeconds + rng.Int64N(365*24*3600)

		nFields := rng.IntN(4) + 1
		fields := make([]fluentField, nFields)
		for i := range fields {
			fields[i] = fluentField{
				Key:   fluentFieldKeys[rng.IntN(len(fluentFieldKeys))],
				Value: fluentFieldValues[rng.IntN(len(fluentFieldValues))],
			}
		}

		var tmp bytes.Buffer
		w := msgp.NewWriter(&tmp)
		if err := writeFluentMessage(w, tag, eventTime, fields); err != nil {
			return fmt.Errorf("payload: encoding fluent record: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("payload: flushing fluent record: %w", err)
		}

		if out.Len()+tmp.Len() > sizeHint {
			return nil
		}
		out.Write(tmp.Bytes())
	}
}

func writeFluentMessage(w *msgp.Writer, tag string, eventTime int64, fields []fluentField) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := w.WriteString(tag); err != nil {
		return err
	}
	if err := w.WriteInt64(eventTime); err != nil {
		return err
	}
	if err := w.WriteMapHeader(uint32(len(fields))); err != nil {
		return err
	}
	for _, f := range fields {
		if err := w.WriteString(f.Key); err != nil {
			return err
		}
		if err := w.WriteString(f.Value); err != nil {
			return err
		}
	}
	return nil
}

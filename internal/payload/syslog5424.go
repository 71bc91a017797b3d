package payload

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"time"
)

// facilities and severities cover the RFC-5424 PRI range (facility*8+severity,
// facility 0-23, severity 0-7).
const (
	maxFacility = 23
	maxSeverity = 7
)

// syslogEpoch anchors generated timestamps to a fixed point so that
// reproducing a cache from a seed never depends on wall-clock time.
var syslogEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

var syslogHostnames = []string{
	"web-01.example.com",
	"db-03.example.com",
	"cache-07.example.com",
	"edge-12.example.internal",
}

var syslogAppNames = []string{
	"nginx", "postgres", "sshd", "cron", "loadgen", "kernel",
}

var syslogMsgWords = []string{
	"connection", "accepted", "closed", "timeout", "retry", "authenticated",
	"rejected", "queued", "flushed", "rotated", "established", "dropped",
	"session", "request", "response", "handshake", "expired", "renewed",
}

// Syslog5424 renders syntactically valid RFC-5424 records, one per line.
type Syslog5424 struct{}

// Serialize appends as many newline-terminated RFC-5424 records as fit
// within sizeHint. A record that alone exceeds sizeHint is never emitted,
// which is how a too-small hint legally yields zero bytes.
func (Syslog5424) Serialize(rng *rand.Rand, sizeHint int, out *bytes.Buffer) error {
	for {
		record := randomSyslog5424Record(rng)
		if out.Len()+len(record)+1 > sizeHint {
			return nil
		}
		out.WriteString(record)
		out.WriteByte('\n')
	}
}

func randomSyslog5424Record(rng *rand.Rand) string {
	pri := rng.IntN(maxFacility+1)*8 + rng.IntN(maxSeverity+1)
	hostname := syslogHostnames[rng.IntN(len(syslogHostnames))]
	app := syslogAppNames[rng.IntN(len(syslogAppNames))]
	procID := rng.IntN(65000) + 1
	msgID := "-"
	if rng.IntN(3) == 0 {
		msgID = fmt.Sprintf("ID%d", rng.IntN(9999))
	}

	nWords := rng.IntN(6) + 2
	msg := make([]byte, 0, nWords*8)
	for i := 0; i < nWords; i++ {
		if i > 0 {
			msg = append(msg, ' ')
		}
		msg = append(msg, syslogMsgWords[rng.IntN(len(syslogMsgWords))]...)
	}

	// Timestamps are derived entirely from rng, not wall-clock time, so that
	// two runs seeded identically produce byte-identical caches.
	timestamp := syslogEpoch.Add(time.Duration(rng.Int64N(int64(10 * 365 * 24 * time.Hour)))).
		UTC().Format("2006-01-02T15:04:05.000Z")

	return fmt.Sprintf("<%d>1 %s %s %s %d %s - %s",
		pri, timestamp, hostname, app, procID, msgID, msg)
}

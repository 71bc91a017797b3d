// Package block builds the immutable, pre-serialized payload cache that the
// emission loop cycles through. Building a cache means invoking a
// payload.Serializer once per planned chunk size and keeping only the
// renders that came back non-empty.
package block

import (
	"bytes"
	"fmt"
	"math/rand/v2"

	"github.com/nishisan-dev/loadgen/internal/payload"
	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

// Block is an immutable, pre-serialized payload ready to write to the wire.
type Block struct {
	TotalBytes int
	LineCount  uint64
	Payload    []byte
}

// Cache is a non-empty, ordered, immutable sequence of Blocks. It is safe to
// share read-only across goroutines; nothing in this package ever mutates a
// Cache after Build returns it.
type Cache struct {
	blocks []Block
}

// Len reports how many blocks the cache holds.
func (c *Cache) Len() int {
	return len(c.blocks)
}

// At returns the block at position i modulo the cache length, which is how
// callers cycle through the cache forever without rewinding on reconnect.
func (c *Cache) At(i uint64) *Block {
	return &c.blocks[i%uint64(len(c.blocks))]
}

// Build renders one block per entry in chunks using serializer, skipping any
// render that comes back empty (a known quirk of size-hinted serializers:
// see payload.Serializer). labels are attached to the
// block_construction_complete gauge emitted on success. Build fails if every chunk rendered empty.
func Build(rng *rand.Rand, serializer payload.Serializer, chunks []int, labels telemetry.Labels, sink telemetry.Sink) (*Cache, error) {
	blocks := make([]Block, 0, len(chunks))

	for _, size := range chunks {
		buf := bytes.NewBuffer(make([]byte, 0, size))
		if err := serializer.Serialize(rng, size, buf); err != nil {
			return nil, fmt.Errorf("block: serializer failed for chunk of %d bytes: %w", size, err)
		}
		if buf.Len() == 0 {
			continue
		}

		payloadBytes := make([]byte, buf.Len())
		copy(payloadBytes, buf.Bytes())

		blocks = append(blocks, Block{
			TotalBytes: len(payloadBytes),
			LineCount:  countNewlines(payloadBytes),
			Payload:    payloadBytes,
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("block: no chunk produced a non-empty render out of %d planned", len(chunks))
	}

	if sink != nil {
		sink.SetGauge("block_construction_complete", 1, labels)
	}

	return &Cache{blocks: blocks}, nil
}

func countNewlines(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

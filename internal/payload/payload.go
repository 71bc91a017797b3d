// Package payload renders one of several wire formats into a caller-supplied
// buffer, up to a size hint. Implementations never write more than the
// hint allows and are free to emit fewer bytes — including zero — when the
// format's minimum record size does not fit the hint.
package payload

import (
	"bytes"
	"math/rand/v2"
)

// Serializer appends 0..=sizeHint bytes of valid wire content to out. Output
// must be parseable by a compliant consumer of the wire format. Emitting
// zero bytes is legal and expected when sizeHint is smaller than the
// format's minimum representable record.
type Serializer interface {
	Serialize(rng *rand.Rand, sizeHint int, out *bytes.Buffer) error
}

// Variant names the wire format a generator speaks, matching the
// configuration record's `variant` tagged union.
type Variant string

const (
	VariantSyslog5424 Variant = "syslog5424"
	VariantFluent     Variant = "fluent"
	VariantStatic     Variant = "static"
)

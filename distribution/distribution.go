// Package distribution implements C4: a polymorphic strategy that
// partitions an object's byte range across servers for striping. Three
// variants are supported — round-robin, single-server and weighted — all
// sharing one iterator contract: Reset(length, offset) then repeated calls
// to Distribute() until exhausted.
package distribution

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/pkg/errors"
)

// StripeCap is the global block-size ceiling (spec §4.4): no round-robin or
// weighted block may exceed 4 MiB regardless of what Set requests.
const StripeCap uint64 = 4 << 20

type Variant int

const (
	RoundRobin Variant = iota
	SingleServer
	Weighted
)

func (v Variant) String() string {
	switch v {
	case SingleServer:
		return "single-server"
	case Weighted:
		return "weighted"
	default:
		return "round-robin"
	}
}

// Stride is one partitioned piece of a byte range: length bytes starting at
// offset belong on server ServerIndex, tagged with a BlockID for callers
// that need to correlate strides with physical block placement.
type Stride struct {
	ServerIndex int
	Length      uint64
	Offset      uint64
	BlockID     uint64
}

// Distribution holds variant-specific configuration plus iterator state.
// A Distribution lives as long as any in-flight read/write that scopes it;
// it is not safe for concurrent Distribute calls (one range op, one
// goroutine).
type Distribution struct {
	variant     Variant
	serverCount int

	blockSize    uint64 // round-robin, weighted
	startIndex   int    // round-robin
	chosenServer int    // single-server
	weights      []int  // weighted, len == serverCount
	order        []int  // weighted: precomputed server sequence, len == sum(weights)

	remaining uint64
	current   uint64
}

// New builds a Distribution for variant across serverCount servers. Call
// Set/Set2 to configure variant-specific parameters before the first
// Reset.
func New(variant Variant, serverCount int) *Distribution {
	return &Distribution{
		variant:     variant,
		serverCount: serverCount,
		blockSize:   StripeCap,
	}
}

// Set assigns a single-uint64 variant parameter: "block-size" (round-robin,
// weighted), "start-index" (round-robin) or "server" (single-server).
func (d *Distribution) Set(key string, v uint64) error {
	switch key {
	case "block-size":
		if v == 0 || v > StripeCap {
			v = StripeCap
		}
		d.blockSize = v
	case "start-index":
		if int(v) >= d.serverCount {
			return errors.Errorf("distribution: start-index %d out of range [0,%d)", v, d.serverCount)
		}
		d.startIndex = int(v)
	case "server":
		if int(v) >= d.serverCount {
			return errors.Errorf("distribution: server %d out of range [0,%d)", v, d.serverCount)
		}
		d.chosenServer = int(v)
	default:
		return errors.Errorf("distribution: unknown parameter %q", key)
	}
	return nil
}

// Set2 assigns a two-uint64 variant parameter: "weight" (a=server index,
// b=weight) for the weighted variant.
func (d *Distribution) Set2(key string, a, b uint64) error {
	if key != "weight" {
		return errors.Errorf("distribution: unknown parameter %q", key)
	}
	if int(a) >= d.serverCount {
		return errors.Errorf("distribution: server %d out of range [0,%d)", a, d.serverCount)
	}
	if d.weights == nil {
		d.weights = make([]int, d.serverCount)
	}
	d.weights[a] = int(b)
	d.order = nil // invalidate, rebuilt lazily on next Reset
	return nil
}

// Reset initializes the iterator over [offset, offset+length).
func (d *Distribution) Reset(length, offset uint64) {
	d.remaining = length
	d.current = offset
	if d.variant == Weighted && d.order == nil {
		d.buildOrder()
	}
}

func (d *Distribution) buildOrder() {
	total := 0
	for _, w := range d.weights {
		if w < 1 {
			w = 1
		}
		total += w
	}
	order := make([]int, 0, total)
	for i, w := range d.weights {
		if w < 1 {
			w = 1
		}
		for j := 0; j < w; j++ {
			order = append(order, i)
		}
	}
	d.order = order
}

// Distribute yields the next (server-index, length, offset, block-id)
// stride and advances the iterator, returning false once the configured
// range has been fully covered. The stride length is the minimum of the
// remaining length and the distance to the next block boundary.
func (d *Distribution) Distribute() (Stride, bool) {
	if d.remaining == 0 {
		return Stride{}, false
	}
	switch d.variant {
	case SingleServer:
		return d.distributeSingle()
	case Weighted:
		return d.distributeBlocked(d.order)
	default:
		return d.distributeRoundRobin()
	}
}

func (d *Distribution) distributeSingle() (Stride, bool) {
	s := Stride{ServerIndex: d.chosenServer, Length: d.remaining, Offset: d.current, BlockID: 0}
	d.current += d.remaining
	d.remaining = 0
	return s, true
}

func (d *Distribution) distributeRoundRobin() (Stride, bool) {
	blockIndex := d.current / d.blockSize
	serverIdx := (d.startIndex + int(blockIndex)) % d.serverCount
	return d.emit(blockIndex, serverIdx), true
}

func (d *Distribution) distributeBlocked(order []int) (Stride, bool) {
	blockIndex := d.current / d.blockSize
	serverIdx := order[int(blockIndex)%len(order)]
	return d.emit(blockIndex, serverIdx), true
}

func (d *Distribution) emit(blockIndex uint64, serverIdx int) Stride {
	boundary := (blockIndex + 1) * d.blockSize
	strideLen := boundary - d.current
	if strideLen > d.remaining {
		strideLen = d.remaining
	}
	s := Stride{ServerIndex: serverIdx, Length: strideLen, Offset: d.current, BlockID: blockIndex}
	d.current += strideLen
	d.remaining -= strideLen
	return s
}

// doc is the on-the-wire/on-disk representation used by MarshalJSON and
// ParseJSON (spec §4.4 "serialization to/from a document format").
type doc struct {
	Variant      string `json:"variant"`
	ServerCount  int    `json:"server_count"`
	BlockSize    uint64 `json:"block_size,omitempty"`
	StartIndex   int    `json:"start_index,omitempty"`
	ChosenServer int    `json:"chosen_server,omitempty"`
	Weights      []int  `json:"weights,omitempty"`
}

func (d *Distribution) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(doc{
		Variant:      d.variant.String(),
		ServerCount:  d.serverCount,
		BlockSize:    d.blockSize,
		StartIndex:   d.startIndex,
		ChosenServer: d.chosenServer,
		Weights:      d.weights,
	})
}

// ParseJSON decodes a document produced by MarshalJSON. The "variant" tag
// decides which fields are meaningful, exactly as spec §4.4 prescribes.
func ParseJSON(b []byte) (*Distribution, error) {
	var v doc
	if err := jsoniter.Unmarshal(b, &v); err != nil {
		return nil, errors.Wrap(err, "distribution: parse")
	}
	d := &Distribution{serverCount: v.ServerCount, blockSize: v.BlockSize}
	switch v.Variant {
	case "single-server":
		d.variant = SingleServer
		d.chosenServer = v.ChosenServer
	case "weighted":
		d.variant = Weighted
		d.weights = v.Weights
	default:
		d.variant = RoundRobin
		d.startIndex = v.StartIndex
	}
	if d.blockSize == 0 || d.blockSize > StripeCap {
		d.blockSize = StripeCap
	}
	return d, nil
}

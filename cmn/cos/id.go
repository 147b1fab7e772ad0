package cos

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// MLCG32 is the multiplicative-congruential seed used everywhere a name or
// key needs a stable 64-bit digest (handle server-index assignment).
const MLCG32 = 3741260489

// HashDigest returns the stable 64-bit digest of name used to deterministically
// place an object/kv handle on a server: server_index = HashDigest(name) % n.
func HashDigest(name string) uint64 {
	return xxhash.Checksum64S(UnsafeB(name), MLCG32)
}

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initShortID() {
	s, err := shortid.New(1, shortid.DefaultABC, uint64(HashDigest("julea-id-seed")))
	if err != nil {
		// shortid.New only fails on a malformed alphabet; DefaultABC is
		// always well-formed, so this is unreachable in practice.
		s = shortid.MustNew(1, shortid.DefaultABC, 1)
	}
	sid = s
}

// GenID produces a short, globally-unique-enough identifier for background
// tasks (C6) — not security sensitive, just a debugging and correlation aid.
func GenID() string {
	sidOnce.Do(initShortID)
	id, err := sid.Generate()
	if err != nil {
		return "genid-fallback"
	}
	return id
}

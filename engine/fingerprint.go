package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-protocol/analysis"
)

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/cwbudde/algo-protocol/run"))

// RunID derives a name-based UUID from the protocol source and the
// analyzed buffers. Identical inputs give identical identifiers.
func RunID(source []byte, ec *analysis.ExecutionContext) uuid.UUID {
	h := sha256.New()
	h.Write(source)

	var word [8]byte

	binary.LittleEndian.PutUint64(word[:], uint64(ec.SampleRate()))
	h.Write(word[:])

	for _, name := range ec.ChannelNames() {
		h.Write([]byte(name))

		buf, _ := ec.Channel(name)
		for _, v := range buf {
			binary.LittleEndian.PutUint64(word[:], math.Float64bits(v))
			h.Write(word[:])
		}
	}

	return uuid.NewSHA1(runNamespace, h.Sum(nil))
}

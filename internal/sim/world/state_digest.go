package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// stateDigest hashes everything that determines future ticks: the tick,
// the palette, every generated chunk with its load state, the sources and
// the engine cursor.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteI64(h, &tmp, w.cfg.Seed)

	for _, s := range w.chunks.pal.Strings() {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	for _, k := range w.chunks.ChunkKeys() {
		digestWriteI64(h, &tmp, int64(k.CX))
		digestWriteI64(h, &tmp, int64(k.CZ))
		h.Write([]byte{boolByte(w.chunks.loaded[k])})
		d := w.chunks.chunks[k].Digest()
		h.Write(d[:])
	}

	for _, rec := range w.reg.Records() {
		for _, v := range rec.Center {
			digestWriteI64(h, &tmp, int64(v))
		}
		digestWriteI64(h, &tmp, int64(rec.Strength))
		digestWriteU64(h, &tmp, rec.LastTick)
		digestWriteU64(h, &tmp, uint64(len(rec.Frontier)))
		for _, p := range rec.Frontier {
			for _, v := range p {
				digestWriteI64(h, &tmp, int64(v))
			}
		}
	}
	digestWriteI64(h, &tmp, int64(w.engine.Cursor()))

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

package deflate

// bitWriter appends bits LSB first, as DEFLATE requires.
type bitWriter struct {
	out  []byte
	bits uint64
	n    uint
}

// send appends the low length bits of value.
func (w *bitWriter) send(value, length int) {
	w.bits |= uint64(value) << w.n
	w.n += uint(length)
	for w.n >= 8 {
		w.out = append(w.out, byte(w.bits))
		w.bits >>= 8
		w.n -= 8
	}
}

// windup pads the pending bits to a byte boundary.
func (w *bitWriter) windup() {
	if w.n > 0 {
		w.out = append(w.out, byte(w.bits))
	}
	w.bits, w.n = 0, 0
}

func (w *bitWriter) putShort(v int) {
	w.out = append(w.out, byte(v), byte(v>>8))
}

// Package deflate implements a raw DEFLATE (RFC 1951) encoder whose output
// matches zlib's lazy-matching levels byte for byte, using zlib's default
// window (15 bits) and memory level (8).
//
// Go's compress/flate (and klauspost/compress/flate) produce valid streams
// that inflate to the same data, but they terminate every stream with an
// empty stored block and choose block boundaries differently. Status lists
// are compared as strings across implementations, so the encoder has to make
// exactly the same decisions zlib makes.
package deflate

import (
	"errors"
	"fmt"
)

const (
	// MinLevel and MaxLevel bound the levels served by the lazy matcher.
	MinLevel = 4
	MaxLevel = 9
	// BestCompression is zlib's level 9.
	BestCompression = 9
)

// ErrLevel is returned for levels outside [MinLevel, MaxLevel].
var ErrLevel = errors.New("deflate: unsupported compression level")

const (
	wBits   = 15
	wSize   = 1 << wBits
	wMask   = wSize - 1
	winSize = 2 * wSize

	hashBits  = 8 + 7 // memLevel + 7
	hashSize  = 1 << hashBits
	hashMask  = hashSize - 1
	hashShift = (hashBits + minMatch - 1) / minMatch

	minMatch     = 3
	maxMatch     = 258
	minLookahead = maxMatch + minMatch + 1
	maxDist      = wSize - minLookahead
	tooFar       = 4096

	// symbols buffered per block before it is flushed
	litBufSize = 1 << (8 + 6)

	nilPos = 0
)

type config struct {
	good  int // reduce lazy search above this match length
	lazy  int // do not perform lazy search above this match length
	nice  int // quit search above this match length
	chain int
}

var configs = [MaxLevel + 1]config{
	4: {4, 4, 16, 16},
	5: {8, 16, 32, 32},
	6: {8, 16, 128, 128},
	7: {8, 32, 128, 256},
	8: {32, 128, 258, 1024},
	9: {32, 258, 258, 4096},
}

// Compress returns the raw deflate encoding of src at the given level.
// The whole input is consumed and the stream is terminated with a final
// block.
func Compress(src []byte, level int) ([]byte, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, fmt.Errorf("%w: %d", ErrLevel, level)
	}
	c := newCompressor(src, configs[level])
	c.deflate()
	return c.bw.out, nil
}

type symbol struct {
	dist uint16 // 0 for literals
	lc   uint8  // literal byte or match length - minMatch
}

type compressor struct {
	cfg config
	in  []byte

	window []byte
	prev   []uint16
	head   []uint16
	insH   int

	strstart   int
	lookahead  int
	blockStart int // negative once the block start slid out of the window

	matchStart     int
	matchLength    int
	prevMatch      int
	prevLength     int
	matchAvailable bool

	syms []symbol
	huffman
	bw bitWriter
}

func newCompressor(src []byte, cfg config) *compressor {
	c := &compressor{
		cfg:         cfg,
		in:          src,
		window:      make([]byte, winSize),
		prev:        make([]uint16, wSize),
		head:        make([]uint16, hashSize),
		matchLength: minMatch - 1,
		prevLength:  minMatch - 1,
		syms:        make([]symbol, 0, litBufSize-1),
		bw:          bitWriter{out: make([]byte, 0, len(src)/2+16)},
	}
	c.huffman.init()
	return c
}

// fillWindow reads input into the window until at least minLookahead bytes
// are available or the input is exhausted, sliding the upper half of the
// window down when strstart gets too close to the end.
func (c *compressor) fillWindow() {
	for {
		more := winSize - c.lookahead - c.strstart

		if c.strstart >= wSize+maxDist {
			copy(c.window[:wSize-more], c.window[wSize:winSize-more])
			c.matchStart -= wSize
			c.strstart -= wSize
			c.blockStart -= wSize
			c.slideHash()
			more += wSize
		}
		if len(c.in) == 0 {
			return
		}

		at := c.strstart + c.lookahead
		n := copy(c.window[at:at+more], c.in)
		c.in = c.in[n:]
		c.lookahead += n

		if c.lookahead >= minMatch {
			str := c.strstart
			c.insH = int(c.window[str])
			c.insH = ((c.insH << hashShift) ^ int(c.window[str+1])) & hashMask
		}
		if c.lookahead >= minLookahead || len(c.in) == 0 {
			return
		}
	}
}

func (c *compressor) slideHash() {
	for i, m := range c.head {
		if m >= wSize {
			c.head[i] = m - wSize
		} else {
			c.head[i] = nilPos
		}
	}
	for i, m := range c.prev {
		if m >= wSize {
			c.prev[i] = m - wSize
		} else {
			c.prev[i] = nilPos
		}
	}
}

// insertString adds the string starting at str to the hash chains and returns
// the previous head of its chain.
func (c *compressor) insertString(str int) int {
	c.insH = ((c.insH << hashShift) ^ int(c.window[str+minMatch-1])) & hashMask
	head := c.head[c.insH]
	c.prev[str&wMask] = head
	c.head[c.insH] = uint16(str)
	return int(head)
}

// longestMatch walks the hash chain starting at curMatch and returns the
// length of the longest match for the string at strstart, recording its
// position in matchStart. Only matches longer than prevLength are reported.
func (c *compressor) longestMatch(curMatch int) int {
	win := c.window
	chain := c.cfg.chain
	scan := c.strstart
	bestLen := c.prevLength
	nice := c.cfg.nice
	limit := nilPos
	if c.strstart > maxDist {
		limit = c.strstart - maxDist
	}
	scanEnd1 := win[scan+bestLen-1]
	scanEnd := win[scan+bestLen]

	if c.prevLength >= c.cfg.good {
		chain >>= 2
	}
	if nice > c.lookahead {
		nice = c.lookahead
	}

	for {
		m := curMatch
		// The third byte is equal whenever the first two are, since both
		// strings share a hash chain.
		if win[m+bestLen] == scanEnd && win[m+bestLen-1] == scanEnd1 &&
			win[m] == win[scan] && win[m+1] == win[scan+1] {
			n := minMatch
			for n < maxMatch && win[scan+n] == win[m+n] {
				n++
			}
			if n > bestLen {
				c.matchStart = curMatch
				bestLen = n
				if n >= nice {
					break
				}
				scanEnd1 = win[scan+bestLen-1]
				scanEnd = win[scan+bestLen]
			}
		}

		curMatch = int(c.prev[curMatch&wMask])
		if curMatch <= limit {
			break
		}
		chain--
		if chain == 0 {
			break
		}
	}

	if bestLen <= c.lookahead {
		return bestLen
	}
	return c.lookahead
}

// deflate runs the lazy matcher over the whole input: a match is only
// emitted once the match starting at the next byte turns out not to be
// longer.
func (c *compressor) deflate() {
	for {
		if c.lookahead < minLookahead {
			c.fillWindow()
			if c.lookahead == 0 {
				break
			}
		}

		hashHead := nilPos
		if c.lookahead >= minMatch {
			hashHead = c.insertString(c.strstart)
		}

		c.prevLength, c.prevMatch = c.matchLength, c.matchStart
		c.matchLength = minMatch - 1

		if hashHead != nilPos && c.prevLength < c.cfg.lazy && c.strstart-hashHead <= maxDist {
			c.matchLength = c.longestMatch(hashHead)
			// short matches far away cost more than the literals
			if c.matchLength == minMatch && c.strstart-c.matchStart > tooFar {
				c.matchLength = minMatch - 1
			}
		}

		switch {
		case c.prevLength >= minMatch && c.matchLength <= c.prevLength:
			maxInsert := c.strstart + c.lookahead - minMatch
			flush := c.tallyDist(c.strstart-1-c.prevMatch, c.prevLength-minMatch)

			c.lookahead -= c.prevLength - 1
			c.prevLength -= 2
			for {
				c.strstart++
				if c.strstart <= maxInsert {
					c.insertString(c.strstart)
				}
				c.prevLength--
				if c.prevLength == 0 {
					break
				}
			}
			c.matchAvailable = false
			c.matchLength = minMatch - 1
			c.strstart++

			if flush {
				c.flushBlock(false)
			}
		case c.matchAvailable:
			if c.tallyLit(c.window[c.strstart-1]) {
				c.flushBlock(false)
			}
			c.strstart++
			c.lookahead--
		default:
			c.matchAvailable = true
			c.strstart++
			c.lookahead--
		}
	}

	if c.matchAvailable {
		c.tallyLit(c.window[c.strstart-1])
		c.matchAvailable = false
	}
	c.flushBlock(true)
}

func (c *compressor) tallyLit(b byte) bool {
	c.syms = append(c.syms, symbol{lc: b})
	c.ltree.freq[b]++
	return len(c.syms) == litBufSize-1
}

func (c *compressor) tallyDist(dist, lc int) bool {
	c.syms = append(c.syms, symbol{dist: uint16(dist), lc: uint8(lc)})
	c.ltree.freq[int(lengthCode[lc])+literals+1]++
	c.dtree.freq[distanceCode(dist-1)]++
	return len(c.syms) == litBufSize-1
}

// flushBlock emits the symbols buffered since blockStart. The raw bytes are
// offered for a stored block only while they are still in the window.
func (c *compressor) flushBlock(last bool) {
	var stored []byte
	if c.blockStart >= 0 {
		stored = c.window[c.blockStart:c.strstart]
	}
	c.flushSymbols(stored, c.blockStart >= 0, last)
	c.blockStart = c.strstart
}

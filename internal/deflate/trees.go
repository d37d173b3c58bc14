package deflate

import "math/bits"

const (
	lengthCodes = 29
	literals    = 256
	lCodes      = literals + 1 + lengthCodes
	dCodes      = 30
	blCodes     = 19
	heapSize    = 2*lCodes + 1
	maxBits     = 15
	maxBLBits   = 7
	endBlock    = 256

	rep3To6     = 16 // repeat previous bit length 3-6 times (2 extra bits)
	repz3To10   = 17 // repeat a zero length 3-10 times (3 extra bits)
	repz11To138 = 18 // repeat a zero length 11-138 times (7 extra bits)

	storedBlock = 0
	staticTrees = 1
	dynTrees    = 2
)

var (
	extraLBits  = [lengthCodes]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	extraDBits  = [dCodes]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}
	extraBLBits = [blCodes]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 3, 7}

	// order in which bit length code lengths are sent
	blOrder = [blCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

var (
	lengthCode [maxMatch - minMatch + 1]uint8
	distCode   [512]uint8
	baseLength [lengthCodes]int
	baseDist   [dCodes]int

	staticLTree = staticTree{code: make([]uint16, lCodes+2), len: make([]int, lCodes+2)}
	staticDTree = staticTree{code: make([]uint16, dCodes), len: make([]int, dCodes)}

	lDesc  = treeDesc{static: &staticLTree, extra: extraLBits[:], base: literals + 1, elems: lCodes, maxLength: maxBits}
	dDesc  = treeDesc{static: &staticDTree, extra: extraDBits[:], base: 0, elems: dCodes, maxLength: maxBits}
	blDesc = treeDesc{extra: extraBLBits[:], base: 0, elems: blCodes, maxLength: maxBLBits}
)

func init() {
	length := 0
	code := 0
	for code = 0; code < lengthCodes-1; code++ {
		baseLength[code] = length
		for n := 0; n < 1<<extraLBits[code]; n++ {
			lengthCode[length] = uint8(code)
			length++
		}
	}
	// Length 258 can be sent as code 284 + 5 bits or as code 285; the
	// latter is shorter.
	lengthCode[length-1] = uint8(code)

	dist := 0
	for code = 0; code < 16; code++ {
		baseDist[code] = dist
		for n := 0; n < 1<<extraDBits[code]; n++ {
			distCode[dist] = uint8(code)
			dist++
		}
	}
	dist >>= 7 // distances above 256 are indexed in units of 128
	for ; code < dCodes; code++ {
		baseDist[code] = dist << 7
		for n := 0; n < 1<<(extraDBits[code]-7); n++ {
			distCode[256+dist] = uint8(code)
			dist++
		}
	}

	var blCount [maxBits + 1]int
	n := 0
	for ; n <= 143; n++ {
		staticLTree.len[n] = 8
		blCount[8]++
	}
	for ; n <= 255; n++ {
		staticLTree.len[n] = 9
		blCount[9]++
	}
	for ; n <= 279; n++ {
		staticLTree.len[n] = 7
		blCount[7]++
	}
	for ; n <= 287; n++ {
		staticLTree.len[n] = 8
		blCount[8]++
	}
	genCodes(staticLTree.code, staticLTree.len, lCodes+1, blCount[:])

	for n := 0; n < dCodes; n++ {
		staticDTree.len[n] = 5
		staticDTree.code[n] = reverse(n, 5)
	}
}

func distanceCode(dist int) int {
	if dist < 256 {
		return int(distCode[dist])
	}
	return int(distCode[256+dist>>7])
}

func reverse(code, length int) uint16 {
	return bits.Reverse16(uint16(code)) >> (16 - length)
}

// genCodes assigns canonical codes to the lengths in ln, bit reversed so they
// can be sent LSB first.
func genCodes(code []uint16, ln []int, maxCode int, blCount []int) {
	var nextCode [maxBits + 1]int
	c := 0
	for b := 1; b <= maxBits; b++ {
		c = (c + blCount[b-1]) << 1
		nextCode[b] = c
	}
	for n := 0; n <= maxCode; n++ {
		l := ln[n]
		if l == 0 {
			continue
		}
		code[n] = reverse(nextCode[l], l)
		nextCode[l]++
	}
}

type staticTree struct {
	code []uint16
	len  []int
}

type treeDesc struct {
	static    *staticTree
	extra     []int
	base      int
	elems     int
	maxLength int
}

type tree struct {
	freq    []int
	code    []uint16
	dad     []int
	len     []int
	maxCode int
	desc    *treeDesc
}

func newTree(desc *treeDesc) tree {
	return tree{
		freq: make([]int, heapSize),
		code: make([]uint16, heapSize),
		dad:  make([]int, heapSize),
		len:  make([]int, heapSize),
		desc: desc,
	}
}

type huffman struct {
	ltree  tree
	dtree  tree
	bltree tree

	heap    [heapSize]int
	heapLen int
	heapMax int
	depth   [heapSize]int
	blCount [maxBits + 1]int

	optLen    int // bit length with the dynamic trees
	staticLen int // bit length with the static trees
}

func (h *huffman) init() {
	h.ltree = newTree(&lDesc)
	h.dtree = newTree(&dDesc)
	h.bltree = newTree(&blDesc)
	h.initBlock()
}

func (h *huffman) initBlock() {
	for n := 0; n < lCodes; n++ {
		h.ltree.freq[n] = 0
	}
	for n := 0; n < dCodes; n++ {
		h.dtree.freq[n] = 0
	}
	for n := 0; n < blCodes; n++ {
		h.bltree.freq[n] = 0
	}
	h.ltree.freq[endBlock] = 1
	h.optLen, h.staticLen = 0, 0
}

func (h *huffman) smaller(t *tree, n, m int) bool {
	return t.freq[n] < t.freq[m] || (t.freq[n] == t.freq[m] && h.depth[n] <= h.depth[m])
}

// pqdownheap restores the heap property by sifting the node at k down.
func (h *huffman) pqdownheap(t *tree, k int) {
	v := h.heap[k]
	j := k << 1
	for j <= h.heapLen {
		if j < h.heapLen && h.smaller(t, h.heap[j+1], h.heap[j]) {
			j++
		}
		if h.smaller(t, v, h.heap[j]) {
			break
		}
		h.heap[k] = h.heap[j]
		k = j
		j <<= 1
	}
	h.heap[k] = v
}

func (h *huffman) pqremove(t *tree) int {
	top := h.heap[1]
	h.heap[1] = h.heap[h.heapLen]
	h.heapLen--
	h.pqdownheap(t, 1)
	return top
}

// buildTree computes the code lengths and codes of t from its frequencies
// and adds the cost of the block under t to optLen and staticLen.
func (h *huffman) buildTree(t *tree) {
	d := t.desc
	maxCode := -1
	h.heapLen, h.heapMax = 0, heapSize

	for n := 0; n < d.elems; n++ {
		if t.freq[n] != 0 {
			h.heapLen++
			h.heap[h.heapLen] = n
			maxCode = n
			h.depth[n] = 0
		} else {
			t.len[n] = 0
		}
	}

	// The format needs at least one distance code, and a tree with a single
	// code is not complete, so force at least two codes of non zero length.
	for h.heapLen < 2 {
		node := 0
		if maxCode < 2 {
			maxCode++
			node = maxCode
		}
		h.heapLen++
		h.heap[h.heapLen] = node
		t.freq[node] = 1
		h.depth[node] = 0
		h.optLen--
		if d.static != nil {
			h.staticLen -= d.static.len[node]
		}
	}
	t.maxCode = maxCode

	for n := h.heapLen / 2; n >= 1; n-- {
		h.pqdownheap(t, n)
	}

	node := d.elems
	for {
		n := h.pqremove(t)
		m := h.heap[1]

		h.heapMax--
		h.heap[h.heapMax] = n
		h.heapMax--
		h.heap[h.heapMax] = m

		t.freq[node] = t.freq[n] + t.freq[m]
		if h.depth[n] >= h.depth[m] {
			h.depth[node] = h.depth[n] + 1
		} else {
			h.depth[node] = h.depth[m] + 1
		}
		t.dad[n], t.dad[m] = node, node

		h.heap[1] = node
		node++
		h.pqdownheap(t, 1)

		if h.heapLen < 2 {
			break
		}
	}
	h.heapMax--
	h.heap[h.heapMax] = h.heap[1]

	h.genBitlen(t)
	genCodes(t.code, t.len, maxCode, h.blCount[:])
}

// genBitlen derives code lengths from the tree in heap[heapMax:], limiting
// them to the maximum length of the tree.
func (h *huffman) genBitlen(t *tree) {
	d := t.desc
	overflow := 0

	for b := range h.blCount {
		h.blCount[b] = 0
	}

	t.len[h.heap[h.heapMax]] = 0 // root

	hi := h.heapMax + 1
	for ; hi < heapSize; hi++ {
		n := h.heap[hi]
		b := t.len[t.dad[n]] + 1
		if b > d.maxLength {
			b = d.maxLength
			overflow++
		}
		t.len[n] = b

		if n > t.maxCode {
			continue // not a leaf
		}

		h.blCount[b]++
		xbits := 0
		if n >= d.base {
			xbits = d.extra[n-d.base]
		}
		f := t.freq[n]
		h.optLen += f * (b + xbits)
		if d.static != nil {
			h.staticLen += f * (d.static.len[n] + xbits)
		}
	}
	if overflow == 0 {
		return
	}

	for overflow > 0 {
		b := d.maxLength - 1
		for h.blCount[b] == 0 {
			b--
		}
		h.blCount[b]--      // move one leaf down the tree
		h.blCount[b+1] += 2 // move one overflow item as its brother
		h.blCount[d.maxLength]--
		overflow -= 2
	}

	// Reassign lengths in increasing frequency order.
	for b := d.maxLength; b != 0; b-- {
		n := h.blCount[b]
		for n != 0 {
			hi--
			m := h.heap[hi]
			if m > t.maxCode {
				continue
			}
			if t.len[m] != b {
				h.optLen += (b - t.len[m]) * t.freq[m]
				t.len[m] = b
			}
			n--
		}
	}
}

// scanTree counts the bit length codes needed to send t.
func (h *huffman) scanTree(t *tree, maxCode int) {
	prevlen := -1
	nextlen := t.len[0]
	count := 0
	maxCount, minCount := 7, 4

	if nextlen == 0 {
		maxCount, minCount = 138, 3
	}
	t.len[maxCode+1] = 0xffff // guard

	for n := 0; n <= maxCode; n++ {
		curlen := nextlen
		nextlen = t.len[n+1]
		count++
		if count < maxCount && curlen == nextlen {
			continue
		}
		switch {
		case count < minCount:
			h.bltree.freq[curlen] += count
		case curlen != 0:
			if curlen != prevlen {
				h.bltree.freq[curlen]++
			}
			h.bltree.freq[rep3To6]++
		case count <= 10:
			h.bltree.freq[repz3To10]++
		default:
			h.bltree.freq[repz11To138]++
		}
		count = 0
		prevlen = curlen
		switch {
		case nextlen == 0:
			maxCount, minCount = 138, 3
		case curlen == nextlen:
			maxCount, minCount = 6, 3
		default:
			maxCount, minCount = 7, 4
		}
	}
}

// buildBLTree builds the bit length tree and returns the index in blOrder
// of the last code length to send.
func (h *huffman) buildBLTree() int {
	h.scanTree(&h.ltree, h.ltree.maxCode)
	h.scanTree(&h.dtree, h.dtree.maxCode)

	h.buildTree(&h.bltree)

	maxIndex := blCodes - 1
	for ; maxIndex >= 3; maxIndex-- {
		if h.bltree.len[blOrder[maxIndex]] != 0 {
			break
		}
	}
	h.optLen += 3*(maxIndex+1) + 5 + 5 + 4
	return maxIndex
}

// flushSymbols writes the buffered symbols as one block, picking the
// cheapest of a stored, a static and a dynamic block.
func (c *compressor) flushSymbols(stored []byte, storable, last bool) {
	c.buildTree(&c.ltree)
	c.buildTree(&c.dtree)
	maxIndex := c.buildBLTree()

	optLenb := (c.optLen + 3 + 7) >> 3
	staticLenb := (c.staticLen + 3 + 7) >> 3
	if staticLenb <= optLenb {
		optLenb = staticLenb
	}

	lastBit := 0
	if last {
		lastBit = 1
	}

	switch {
	case storable && len(stored)+4 <= optLenb:
		c.bw.send(storedBlock<<1+lastBit, 3)
		c.bw.windup()
		c.bw.putShort(len(stored))
		c.bw.putShort(^len(stored))
		c.bw.out = append(c.bw.out, stored...)
	case staticLenb == optLenb:
		c.bw.send(staticTrees<<1+lastBit, 3)
		c.compressBlock(staticLTree.code, staticLTree.len, staticDTree.code, staticDTree.len)
	default:
		c.bw.send(dynTrees<<1+lastBit, 3)
		c.sendAllTrees(c.ltree.maxCode+1, c.dtree.maxCode+1, maxIndex+1)
		c.compressBlock(c.ltree.code, c.ltree.len, c.dtree.code, c.dtree.len)
	}

	c.syms = c.syms[:0]
	c.initBlock()
	if last {
		c.bw.windup()
	}
}

func (c *compressor) sendAllTrees(lcodes, dcodes, blcodes int) {
	c.bw.send(lcodes-257, 5)
	c.bw.send(dcodes-1, 5)
	c.bw.send(blcodes-4, 4)
	for rank := 0; rank < blcodes; rank++ {
		c.bw.send(c.bltree.len[blOrder[rank]], 3)
	}
	c.sendTree(&c.ltree, lcodes-1)
	c.sendTree(&c.dtree, dcodes-1)
}

// sendTree sends t in compressed form using the bit length tree. The guard
// left by scanTree is still in place.
func (c *compressor) sendTree(t *tree, maxCode int) {
	bl := &c.bltree
	prevlen := -1
	nextlen := t.len[0]
	count := 0
	maxCount, minCount := 7, 4

	if nextlen == 0 {
		maxCount, minCount = 138, 3
	}

	for n := 0; n <= maxCode; n++ {
		curlen := nextlen
		nextlen = t.len[n+1]
		count++
		if count < maxCount && curlen == nextlen {
			continue
		}
		switch {
		case count < minCount:
			for ; count != 0; count-- {
				c.bw.send(int(bl.code[curlen]), bl.len[curlen])
			}
		case curlen != 0:
			if curlen != prevlen {
				c.bw.send(int(bl.code[curlen]), bl.len[curlen])
				count--
			}
			c.bw.send(int(bl.code[rep3To6]), bl.len[rep3To6])
			c.bw.send(count-3, 2)
		case count <= 10:
			c.bw.send(int(bl.code[repz3To10]), bl.len[repz3To10])
			c.bw.send(count-3, 3)
		default:
			c.bw.send(int(bl.code[repz11To138]), bl.len[repz11To138])
			c.bw.send(count-11, 7)
		}
		count = 0
		prevlen = curlen
		switch {
		case nextlen == 0:
			maxCount, minCount = 138, 3
		case curlen == nextlen:
			maxCount, minCount = 6, 3
		default:
			maxCount, minCount = 7, 4
		}
	}
}

func (c *compressor) compressBlock(lcode []uint16, llen []int, dcode []uint16, dlen []int) {
	for _, s := range c.syms {
		lc := int(s.lc)
		if s.dist == 0 {
			c.bw.send(int(lcode[lc]), llen[lc])
			continue
		}
		code := int(lengthCode[lc])
		c.bw.send(int(lcode[code+literals+1]), llen[code+literals+1])
		if extra := extraLBits[code]; extra != 0 {
			c.bw.send(lc-baseLength[code], extra)
		}
		dist := int(s.dist) - 1
		code = distanceCode(dist)
		c.bw.send(int(dcode[code]), dlen[code])
		if extra := extraDBits[code]; extra != 0 {
			c.bw.send(dist-baseDist[code], extra)
		}
	}
	c.bw.send(int(lcode[endBlock]), llen[endBlock])
}

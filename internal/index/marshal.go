package index

import "bytes"

// Ruby Marshal 4.8 type tags used by the legacy dependency endpoint.
const (
	marshalMajor = 4
	marshalMinor = 8

	tagArray     = '['
	tagHash      = '{'
	tagSymbol    = ':'
	tagSymlink   = ';'
	tagIVar      = 'I'
	tagString    = '"'
	tagTrue      = 'T'
	encodingIVar = "E"
)

// marshalWriter emits the subset of Ruby Marshal needed for dependency
// records: arrays, symbol-keyed hashes, UTF-8 strings and true.
type marshalWriter struct {
	buf     bytes.Buffer
	symbols map[string]int
}

// encodeMarshal renders records as an array of hashes with the keys
// :name, :number, :platform and :dependencies, the last holding
// [name, requirement] pairs.
func encodeMarshal(records []Record) []byte {
	w := &marshalWriter{symbols: make(map[string]int)}
	w.buf.WriteByte(marshalMajor)
	w.buf.WriteByte(marshalMinor)

	w.buf.WriteByte(tagArray)
	w.long(len(records))
	for _, r := range records {
		w.buf.WriteByte(tagHash)
		w.long(4)
		w.symbol("name")
		w.string(r.Name)
		w.symbol("number")
		w.string(r.Number)
		w.symbol("platform")
		w.string(r.Platform)
		w.symbol("dependencies")
		w.buf.WriteByte(tagArray)
		w.long(len(r.Dependencies))
		for _, d := range r.Dependencies {
			w.buf.WriteByte(tagArray)
			w.long(2)
			w.string(d.Name)
			w.string(d.Requirement)
		}
	}
	return w.buf.Bytes()
}

// symbol writes a symbol, or a back-reference if it was written before.
func (w *marshalWriter) symbol(s string) {
	if idx, ok := w.symbols[s]; ok {
		w.buf.WriteByte(tagSymlink)
		w.long(idx)
		return
	}
	w.symbols[s] = len(w.symbols)
	w.buf.WriteByte(tagSymbol)
	w.long(len(s))
	w.buf.WriteString(s)
}

// string writes a String tagged with the UTF-8 encoding ivar (E => true).
func (w *marshalWriter) string(s string) {
	w.buf.WriteByte(tagIVar)
	w.buf.WriteByte(tagString)
	w.long(len(s))
	w.buf.WriteString(s)
	w.long(1)
	w.symbol(encodingIVar)
	w.buf.WriteByte(tagTrue)
}

// long writes a non-negative length in Marshal's packed integer form.
func (w *marshalWriter) long(n int) {
	switch {
	case n <= 0:
		w.buf.WriteByte(0)
	case n < 123:
		w.buf.WriteByte(byte(n + 5))
	default:
		var tmp [4]byte
		size := 0
		for x := n; x != 0 && size < len(tmp); x >>= 8 {
			tmp[size] = byte(x & 0xff)
			size++
		}
		w.buf.WriteByte(byte(size))
		w.buf.Write(tmp[:size])
	}
}

package catalog

import "encoding/binary"

// Field is one declared field of a record layout.
//
// A whole-word field covers Size bytes starting at Offset. A bit sub-field
// shares its parent's Offset and Size and selects bits [Lo, Hi) of that word.
// Raw fields are opaque byte arrays (reserved space, padding).
type Field struct {
	Name   string
	Offset int
	Size   int
	Lo, Hi uint
	Raw    bool
}

// U8 declares a 1-byte unsigned field.
func U8(name string, off int) Field { return Field{Name: name, Offset: off, Size: 1} }

// U16 declares a 2-byte little-endian unsigned field.
func U16(name string, off int) Field { return Field{Name: name, Offset: off, Size: 2} }

// U32 declares a 4-byte little-endian unsigned field.
func U32(name string, off int) Field { return Field{Name: name, Offset: off, Size: 4} }

// U64 declares an 8-byte little-endian unsigned field.
func U64(name string, off int) Field { return Field{Name: name, Offset: off, Size: 8} }

// Bytes declares an n-byte opaque array.
func Bytes(name string, off, n int) Field {
	return Field{Name: name, Offset: off, Size: n, Raw: true}
}

// Bits carves bits [lo, hi) out of the word f.
func (f Field) Bits(name string, lo, hi uint) Field {
	if f.Raw || hi <= lo || hi > uint(f.Size)*8 {
		panic("catalog: invalid bit range for " + f.Name + "." + name)
	}
	return Field{Name: name, Offset: f.Offset, Size: f.Size, Lo: lo, Hi: hi}
}

// IsBits reports whether f is a bit sub-field.
func (f Field) IsBits() bool { return f.Hi > 0 }

func mask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}

func (f Field) word(b []byte) uint64 {
	p := b[f.Offset:]
	switch f.Size {
	case 1:
		return uint64(p[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		return uint64(binary.LittleEndian.Uint32(p))
	case 8:
		return binary.LittleEndian.Uint64(p)
	}
	panic("catalog: field " + f.Name + " is not an integer word")
}

func (f Field) putWord(b []byte, v uint64) {
	p := b[f.Offset:]
	switch f.Size {
	case 1:
		p[0] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(p, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(p, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(p, v)
	default:
		panic("catalog: field " + f.Name + " is not an integer word")
	}
}

// Get reads the field from b. Bit sub-fields return (word >> lo) & mask(hi-lo).
func (f Field) Get(b []byte) uint64 {
	w := f.word(b)
	if !f.IsBits() {
		return w
	}
	return (w >> f.Lo) & mask(f.Hi-f.Lo)
}

// Put writes v into b. Bit sub-fields leave the other bits of the word intact;
// bits of v beyond the field width are discarded.
func (f Field) Put(b []byte, v uint64) {
	if !f.IsBits() {
		f.putWord(b, v)
		return
	}
	m := mask(f.Hi-f.Lo) << f.Lo
	w := f.word(b)
	f.putWord(b, (w&^m)|((v<<f.Lo)&m))
}

// fragmentBits is the width of one timestamp lane.
const fragmentBits = 12

// Fragments is a timestamp split across lanes; fragment i holds bits
// [12i, 12i+12) of the value.
type Fragments []Field

// Get reassembles the value as the sum of fragment_i << (12*i).
func (fs Fragments) Get(b []byte) uint64 {
	var v uint64
	for i, f := range fs {
		v += f.Get(b) << (fragmentBits * uint(i))
	}
	return v
}

// Put splits v across the lanes. Bits above 12*len(fs) are dropped.
func (fs Fragments) Put(b []byte, v uint64) {
	for i, f := range fs {
		f.Put(b, (v>>(fragmentBits*uint(i)))&mask(fragmentBits))
	}
}

// Max is the largest value the lanes can hold.
func (fs Fragments) Max() uint64 {
	return mask(fragmentBits * uint(len(fs)))
}

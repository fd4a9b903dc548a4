package catalog

import "fmt"

// Catalog is the set of formats that apply to one chip generation.
// It is immutable after New and safe for concurrent use.
type Catalog struct {
	chip    Chip
	formats [numKinds]*Format
	tags    [numFamilies][256]*Format
}

// New builds the catalog for chip. It panics if a built-in format violates
// its width invariant, which can only happen through a bad edit to this
// package.
func New(chip Chip) *Catalog {
	c := &Catalog{chip: chip}
	for _, f := range []*Format{
		acsqFormat(),
		fftsThreadFormat(),
		pmuFormat(chip.PmuMode()),
		hwtsFormat(),
		flipFormat(),
		stepFormat(),
		resetFormat(),
		apiFormat(),
		nodeFormat(),
	} {
		if err := f.validate(); err != nil {
			panic("catalog: " + err.Error())
		}
		c.formats[f.Kind] = f
		for _, tag := range f.Tags {
			if prev := c.tags[f.Family][tag]; prev != nil {
				panic(fmt.Sprintf("catalog: tag %d of %s claimed by %s and %s", tag, f.Family, prev.Name, f.Name))
			}
			c.tags[f.Family][tag] = f
		}
	}
	return c
}

// Chip returns the chip the catalog was built for.
func (c *Catalog) Chip() Chip { return c.chip }

// Format returns the format for kind.
func (c *Catalog) Format(kind Kind) (*Format, error) {
	if kind >= numKinds || c.formats[kind] == nil {
		return nil, unknownFormat(kind, "no format for kind")
	}
	return c.formats[kind], nil
}

// Lookup returns the format registered for tag within family.
func (c *Catalog) Lookup(family Family, tag uint8) (*Format, bool) {
	if family >= numFamilies {
		return nil, false
	}
	f := c.tags[family][tag]
	return f, f != nil
}

// Formats lists every format in kind order.
func (c *Catalog) Formats() []*Format {
	out := make([]*Format, 0, numKinds)
	for _, f := range c.formats {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Decode decodes b as a record of kind. Unlike Format.Decode it reports a
// length mismatch as an error instead of panicking.
func (c *Catalog) Decode(kind Kind, b []byte) (Record, error) {
	f, err := c.Format(kind)
	if err != nil {
		return nil, err
	}
	if len(b) != f.Width {
		return nil, lengthMismatch(kind, len(b), f.Width)
	}
	return f.Decode(b)
}

// Encode lays r out in a fresh frame of its format's width. It is the inverse
// of Decode for every value that fits the declared field widths.
func (c *Catalog) Encode(r Record) ([]byte, error) {
	f, err := c.Format(r.Kind())
	if err != nil {
		return nil, err
	}
	b := make([]byte, f.Width)
	if f.Magic != 0 {
		hostMagic.Put(b, uint64(f.Magic))
	}
	if err := f.encode(f, r, b); err != nil {
		return nil, err
	}
	return b, nil
}

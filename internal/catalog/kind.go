package catalog

import "fmt"

// Kind identifies a record kind. The set is closed: adding a kind means
// extending this enum, its Format table entry, and the decode/encode pair.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAcsqLog
	KindFftsThreadLog
	KindFftsPmu
	KindHwtsLog
	KindTaskFlip
	KindStepTrace
	KindStreamReset
	KindApiEvent
	KindNodeTask

	numKinds
)

var kindNames = [numKinds]string{
	KindUnknown:       "unknown",
	KindAcsqLog:       "acsq_log",
	KindFftsThreadLog: "ffts_thread_log",
	KindFftsPmu:       "ffts_pmu",
	KindHwtsLog:       "hwts_log",
	KindTaskFlip:      "task_flip",
	KindStepTrace:     "step_trace",
	KindStreamReset:   "stream_reset",
	KindApiEvent:      "api_event",
	KindNodeTask:      "node_task",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := KindAcsqLog; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindAcsqLog; k < numKinds; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// IsTask reports whether records of this kind mark task boundaries and
// therefore receive a batch id during reconstruction.
func (k Kind) IsTask() bool {
	switch k {
	case KindAcsqLog, KindFftsThreadLog, KindHwtsLog:
		return true
	default:
		return false
	}
}

// Family groups formats sharing one framed stream and header convention.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyStars
	FamilyHwts
	FamilyTsTrack
	FamilyHost

	numFamilies
)

func (f Family) String() string {
	switch f {
	case FamilyStars:
		return "stars"
	case FamilyHwts:
		return "hwts"
	case FamilyTsTrack:
		return "tstrack"
	case FamilyHost:
		return "host"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// ParseFamily maps a family name back to its Family.
func ParseFamily(name string) (Family, bool) {
	for f := FamilyStars; f < numFamilies; f++ {
		if f.String() == name {
			return f, true
		}
	}
	return FamilyUnknown, false
}

// Stride is the default frame width of the family. Host streams carry a
// single format, so their stride is that format's width (0 here).
func (f Family) Stride() int {
	switch f {
	case FamilyStars, FamilyHwts:
		return 64
	case FamilyTsTrack:
		return 24
	default:
		return 0
	}
}

var (
	starsTag   = U16("header", 0).Bits("func_type", 0, 6)
	hwtsTag    = U8("header", 0).Bits("rpt_type", 0, 3)
	tsTrackTag = U8("rpt_type", 1)
)

// TagOf extracts the type tag from a frame header. It reports false for the
// host family, which has no tag, or when the frame is too short to hold one.
func (f Family) TagOf(frame []byte) (uint8, bool) {
	var tag Field
	switch f {
	case FamilyStars:
		tag = starsTag
	case FamilyHwts:
		tag = hwtsTag
	case FamilyTsTrack:
		tag = tsTrackTag
	default:
		return 0, false
	}
	if len(frame) < tag.Offset+tag.Size {
		return 0, false
	}
	return uint8(tag.Get(frame)), true
}

// Chip is the accelerator generation identifier supplied by the caller.
type Chip uint8

const (
	ChipMini    Chip = 0
	ChipCloud   Chip = 1
	ChipLhisi   Chip = 2
	ChipDC      Chip = 3
	ChipCloudV2 Chip = 4
	ChipMiniV3  Chip = 5
)

// ParseChip validates a numeric chip id.
func ParseChip(id int) (Chip, error) {
	if id < int(ChipMini) || id > int(ChipMiniV3) {
		return 0, fmt.Errorf("unknown chip id %d", id)
	}
	return Chip(id), nil
}

// PmuMode selects the PMU record layout.
type PmuMode uint8

const (
	PmuFfts PmuMode = iota
	PmuFftsPlus
)

func (m PmuMode) String() string {
	if m == PmuFftsPlus {
		return "FFTS+"
	}
	return "FFTS"
}

// Slots is the number of counter slots a PMU frame carries.
func (m PmuMode) Slots() int {
	if m == PmuFftsPlus {
		return 32
	}
	return 10
}

// PmuMode returns the PMU layout used by the chip.
func (c Chip) PmuMode() PmuMode {
	if c >= ChipCloudV2 {
		return PmuFftsPlus
	}
	return PmuFfts
}

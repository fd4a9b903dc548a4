package catalog

// Record is a decoded frame. The concrete types in this package are the only
// implementations; consumers switch on Kind() or on the concrete type.
//
// Records are never mutated after decoding. Later stages that derive values
// (the batch id) wrap a Record instead of changing it.
type Record interface {
	Kind() Kind
	// Stream is the hardware stream id, 0 for host records.
	Stream() uint16
	// Time is the record's primary timestamp in cycle counts.
	Time() uint64
	// Values returns the record's fields in Format.Columns order.
	Values() []any

	isRecord()
}

// AcsqLog is a STARS task start (func type 0) or end (func type 1) record.
type AcsqLog struct {
	FuncType  uint8
	Cnt       uint8
	TaskType  uint8
	StreamID  uint16
	TaskID    uint16
	AccID     uint16
	Timestamp uint64
}

func (r AcsqLog) Kind() Kind     { return KindAcsqLog }
func (r AcsqLog) Stream() uint16 { return r.StreamID }
func (r AcsqLog) Time() uint64   { return r.Timestamp }
func (r AcsqLog) isRecord()      {}

func (r AcsqLog) Values() []any {
	return []any{
		int64(r.FuncType), int64(r.Cnt), int64(r.TaskType),
		int64(r.StreamID), int64(r.TaskID), int64(r.AccID), int64(r.Timestamp),
	}
}

// FftsThreadLog is a STARS sub-task thread start (34) or end (35) record.
type FftsThreadLog struct {
	FuncType    uint8
	Cnt         uint8
	ThreadType  uint8
	StreamID    uint16
	TaskID      uint16
	SubtaskID   uint16
	ThreadID    uint16
	SubtaskType uint8
	FftsType    uint8
	Timestamp   uint64
}

func (r FftsThreadLog) Kind() Kind     { return KindFftsThreadLog }
func (r FftsThreadLog) Stream() uint16 { return r.StreamID }
func (r FftsThreadLog) Time() uint64   { return r.Timestamp }
func (r FftsThreadLog) isRecord()      {}

func (r FftsThreadLog) Values() []any {
	return []any{
		int64(r.FuncType), int64(r.Cnt), int64(r.ThreadType),
		int64(r.StreamID), int64(r.TaskID), int64(r.SubtaskID), int64(r.ThreadID),
		int64(r.SubtaskType), int64(r.FftsType), int64(r.Timestamp),
	}
}

// FftsPmu is a PMU sample for one (sub-)task. Counters holds the decoded
// counter slots; its length is the count declared in the frame prefix.
type FftsPmu struct {
	Mode        PmuMode
	Overflow    bool
	StreamID    uint16
	TaskID      uint16
	SubtaskID   uint16
	SubtaskType uint8
	TotalCycles uint64
	StartCnt    uint64
	EndCnt      uint64
	Counters    []uint64
}

func (r FftsPmu) Kind() Kind     { return KindFftsPmu }
func (r FftsPmu) Stream() uint16 { return r.StreamID }
func (r FftsPmu) Time() uint64   { return r.EndCnt }
func (r FftsPmu) isRecord()      {}

func (r FftsPmu) Values() []any {
	ov := int64(0)
	if r.Overflow {
		ov = 1
	}
	counters := make([]byte, 0, len(r.Counters)*8)
	for _, c := range r.Counters {
		counters = appendUint64(counters, c)
	}
	return []any{
		int64(r.Mode), ov, int64(r.StreamID), int64(r.TaskID), int64(r.SubtaskID),
		int64(r.SubtaskType), int64(r.TotalCycles), int64(r.StartCnt), int64(r.EndCnt),
		int64(len(r.Counters)), counters,
	}
}

// HwtsLog is a task start/end record from the HWTS logger. Its timestamp is
// stored as five 12-bit fragments.
type HwtsLog struct {
	RptType   uint8
	Cnt       uint8
	CoreID    uint8
	StreamID  uint16
	TaskID    uint16
	BlockDim  uint16
	Warn      uint16
	Timestamp uint64
}

func (r HwtsLog) Kind() Kind     { return KindHwtsLog }
func (r HwtsLog) Stream() uint16 { return r.StreamID }
func (r HwtsLog) Time() uint64   { return r.Timestamp }
func (r HwtsLog) isRecord()      {}

func (r HwtsLog) Values() []any {
	return []any{
		int64(r.RptType), int64(r.Cnt), int64(r.CoreID), int64(r.StreamID),
		int64(r.TaskID), int64(r.BlockDim), int64(r.Warn), int64(r.Timestamp),
	}
}

// StreamDestroy is the flip number the runtime reports when a stream is
// destroyed. It does not mark an iteration boundary.
const StreamDestroy uint16 = 0xffff

// TaskFlip marks the rollover of a stream to its next iteration. TaskID is the
// task id active at the moment of rollover.
type TaskFlip struct {
	StreamID  uint16
	FlipNum   uint16
	TaskID    uint16
	Timestamp uint64
}

func (r TaskFlip) Kind() Kind     { return KindTaskFlip }
func (r TaskFlip) Stream() uint16 { return r.StreamID }
func (r TaskFlip) Time() uint64   { return r.Timestamp }
func (r TaskFlip) isRecord()      {}

func (r TaskFlip) Values() []any {
	return []any{int64(r.StreamID), int64(r.FlipNum), int64(r.TaskID), int64(r.Timestamp)}
}

// StepTrace is a model step mark (iteration begin/end, FP/BP tags).
type StepTrace struct {
	StreamID  uint16
	TaskID    uint16
	TagID     uint16
	IndexID   uint64
	ModelID   uint64
	Timestamp uint64
}

func (r StepTrace) Kind() Kind     { return KindStepTrace }
func (r StepTrace) Stream() uint16 { return r.StreamID }
func (r StepTrace) Time() uint64   { return r.Timestamp }
func (r StepTrace) isRecord()      {}

func (r StepTrace) Values() []any {
	return []any{
		int64(r.StreamID), int64(r.TaskID), int64(r.TagID),
		int64(r.IndexID), int64(r.ModelID), int64(r.Timestamp),
	}
}

// StreamReset marks a hardware stream reset.
type StreamReset struct {
	StreamID  uint16
	Reason    uint16
	Timestamp uint64
}

func (r StreamReset) Kind() Kind     { return KindStreamReset }
func (r StreamReset) Stream() uint16 { return r.StreamID }
func (r StreamReset) Time() uint64   { return r.Timestamp }
func (r StreamReset) isRecord()      {}

func (r StreamReset) Values() []any {
	return []any{int64(r.StreamID), int64(r.Reason), int64(r.Timestamp)}
}

// ApiEvent is a host-side API call span. ItemID is an interned string id
// resolved by the hash dictionary downstream.
type ApiEvent struct {
	Level    uint16
	Type     uint32
	ThreadID uint32
	Start    uint64
	End      uint64
	ItemID   uint64
}

func (r ApiEvent) Kind() Kind     { return KindApiEvent }
func (r ApiEvent) Stream() uint16 { return 0 }
func (r ApiEvent) Time() uint64   { return r.Start }
func (r ApiEvent) isRecord()      {}

func (r ApiEvent) Values() []any {
	return []any{
		int64(r.Level), int64(r.Type), int64(r.ThreadID),
		int64(r.Start), int64(r.End), int64(r.ItemID),
	}
}

// NodeTask is graph-engine node/task info reported by the host.
type NodeTask struct {
	Level     uint16
	Type      uint32
	ThreadID  uint32
	Timestamp uint64
	OpName    uint64
	OpType    uint64
	TaskType  uint32
	BlockDim  uint32
	StreamID  uint32
	TaskID    uint32
}

func (r NodeTask) Kind() Kind     { return KindNodeTask }
func (r NodeTask) Stream() uint16 { return 0 }
func (r NodeTask) Time() uint64   { return r.Timestamp }
func (r NodeTask) isRecord()      {}

func (r NodeTask) Values() []any {
	return []any{
		int64(r.Level), int64(r.Type), int64(r.ThreadID), int64(r.Timestamp),
		int64(r.OpName), int64(r.OpType), int64(r.TaskType), int64(r.BlockDim),
		int64(r.StreamID), int64(r.TaskID),
	}
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

package catalog

import "fmt"

// Format is the immutable byte layout of one record kind.
type Format struct {
	Kind   Kind
	Family Family
	Name   string
	// Tags are the header tags routed to this format (empty for host formats).
	Tags  []uint8
	Width int
	// Magic is the expected value of the leading u16, 0 when the format has none.
	Magic  uint16
	Fields []Field
	// Columns names the values returned by Record.Values, in order.
	Columns []string

	decode func(f *Format, b []byte) (Record, error)
	encode func(f *Format, r Record, b []byte) error
	slots  int
}

// Decode decodes exactly one frame. len(b) must equal f.Width; anything else
// is a bug in the caller and panics.
func (f *Format) Decode(b []byte) (Record, error) {
	if len(b) != f.Width {
		panic(fmt.Sprintf("catalog: %s decode given %d bytes, want %d", f.Name, len(b), f.Width))
	}
	if f.Magic != 0 {
		if got := uint16(hostMagic.Get(b)); got != f.Magic {
			return nil, badMagic(f.Kind, got, f.Magic)
		}
	}
	return f.decode(f, b)
}

// validate checks that whole-word fields are contiguous, in offset order, and
// cover exactly Width bytes, and that bit sub-fields stay inside the frame.
func (f *Format) validate() error {
	next := 0
	for _, fl := range f.Fields {
		if fl.IsBits() {
			if fl.Offset+fl.Size > f.Width {
				return fmt.Errorf("%s: bit field %s outside frame", f.Name, fl.Name)
			}
			continue
		}
		if fl.Offset != next {
			return fmt.Errorf("%s: field %s at offset %d, want %d", f.Name, fl.Name, fl.Offset, next)
		}
		next += fl.Size
	}
	if next != f.Width {
		return fmt.Errorf("%s: fields cover %d bytes, declared width %d", f.Name, next, f.Width)
	}
	return nil
}

// HostMagic is the sanity constant leading every host-side record.
const HostMagic uint16 = 0x5a5a

// STARS ACSQ task log.
var (
	acsqHeader   = U16("header", 0)
	acsqFuncType = acsqHeader.Bits("func_type", 0, 6)
	acsqCnt      = acsqHeader.Bits("cnt", 6, 10)
	acsqTaskType = acsqHeader.Bits("task_type", 10, 16)
	acsqStreamID = U16("stream_id", 2)
	acsqTaskID   = U16("task_id", 4)
	acsqAccID    = U16("acc_id", 6)
	acsqSysCnt   = U64("sys_cnt", 8)
	acsqReserved = Bytes("reserved", 16, 48)
)

// STARS FFTS sub-task thread log.
var (
	fftsHeader      = U16("header", 0)
	fftsFuncType    = fftsHeader.Bits("func_type", 0, 6)
	fftsCnt         = fftsHeader.Bits("cnt", 6, 10)
	fftsThreadType  = fftsHeader.Bits("thread_type", 10, 13)
	fftsStreamID    = U16("stream_id", 2)
	fftsTaskID      = U16("task_id", 4)
	fftsSubtaskID   = U16("subtask_id", 6)
	fftsThreadID    = U16("thread_id", 8)
	fftsAttr        = U16("attr", 10)
	fftsSubtaskType = fftsAttr.Bits("subtask_type", 0, 8)
	fftsType        = fftsAttr.Bits("ffts_type", 8, 11)
	fftsReserved0   = Bytes("reserved0", 12, 4)
	fftsSysCnt      = U64("sys_cnt", 16)
	fftsReserved1   = Bytes("reserved1", 24, 40)
)

// STARS PMU sample. The prefix is followed by slot-many u64 counters.
var (
	pmuHeader      = U16("header", 0)
	pmuFuncType    = pmuHeader.Bits("func_type", 0, 6)
	pmuOverflow    = pmuHeader.Bits("ov", 6, 7)
	pmuStreamID    = U16("stream_id", 2)
	pmuTaskID      = U16("task_id", 4)
	pmuSubtaskID   = U16("subtask_id", 6)
	pmuCounterNum  = U8("counter_num", 8)
	pmuSubtaskType = U8("subtask_type", 9)
	pmuReserved0   = Bytes("reserved0", 10, 6)
	pmuTotalCycle  = U64("total_cycle", 16)
	pmuStartCnt    = U64("start_cnt", 24)
	pmuEndCnt      = U64("end_cnt", 32)
	pmuReserved1   = Bytes("reserved1", 40, 8)
)

const (
	pmuPrefix      = 48
	pmuCounterSize = 8
)

// HWTS task log with a fragmented timestamp.
var (
	hwtsHeader   = U8("header", 0)
	hwtsRptType  = hwtsHeader.Bits("rpt_type", 0, 3)
	hwtsCnt      = hwtsHeader.Bits("cnt", 3, 7)
	hwtsCoreID   = U8("core_id", 1)
	hwtsStreamID = U16("stream_id", 2)
	hwtsTaskID   = U16("task_id", 4)
	hwtsBlockDim = U16("block_dim", 6)
	hwtsLane0    = U16("ts_lane0", 8)
	hwtsWarn     = U16("warn", 10)
	hwtsLane1    = U16("ts_lane1", 12)
	hwtsPad1     = Bytes("pad1", 14, 2)
	hwtsLane2    = U16("ts_lane2", 16)
	hwtsPad2     = Bytes("pad2", 18, 2)
	hwtsLane3    = U16("ts_lane3", 20)
	hwtsPad3     = Bytes("pad3", 22, 2)
	hwtsLane4    = U16("ts_lane4", 24)
	hwtsPad4     = Bytes("pad4", 26, 2)
	hwtsReserved = Bytes("reserved", 28, 36)

	hwtsTimestamp = Fragments{
		hwtsLane0.Bits("ts0", 0, fragmentBits),
		hwtsLane1.Bits("ts1", 0, fragmentBits),
		hwtsLane2.Bits("ts2", 0, fragmentBits),
		hwtsLane3.Bits("ts3", 0, fragmentBits),
		hwtsLane4.Bits("ts4", 0, fragmentBits),
	}
)

// TS track common header.
var (
	tsMode    = U8("mode", 0)
	tsRptType = U8("rpt_type", 1)
	tsBufSize = U16("buf_size", 2)
)

var (
	flipStreamID  = U16("stream_id", 4)
	flipNum       = U16("flip_num", 6)
	flipTimestamp = U64("timestamp", 8)
	flipTaskID    = U16("task_id", 16)
	flipReserved  = Bytes("reserved", 18, 6)
)

var (
	stepReserved0 = Bytes("reserved0", 4, 4)
	stepTimestamp = U64("timestamp", 8)
	stepIndexID   = U64("index_id", 16)
	stepModelID   = U64("model_id", 24)
	stepStreamID  = U16("stream_id", 32)
	stepTaskID    = U16("task_id", 34)
	stepTagID     = U16("tag_id", 36)
	stepReserved1 = Bytes("reserved1", 38, 2)
)

var (
	resetStreamID  = U16("stream_id", 4)
	resetReason    = U16("reason", 6)
	resetTimestamp = U64("timestamp", 8)
	resetReserved  = Bytes("reserved", 16, 8)
)

// Host common header.
var (
	hostMagic    = U16("magic", 0)
	hostLevel    = U16("level", 2)
	hostType     = U32("type", 4)
	hostThreadID = U32("thread_id", 8)
)

var (
	apiReserved = Bytes("reserved", 12, 4)
	apiStart    = U64("start", 16)
	apiEnd      = U64("end", 24)
	apiItemID   = U64("item_id", 32)
)

var (
	nodeDataLen   = U32("data_len", 12)
	nodeTimestamp = U64("timestamp", 16)
	nodeOpName    = U64("op_name", 24)
	nodeOpType    = U64("op_type", 32)
	nodeTaskType  = U32("task_type", 40)
	nodeBlockDim  = U32("block_dim", 44)
	nodeStreamID  = U32("stream_id", 48)
	nodeTaskID    = U32("task_id", 52)
	nodeReserved  = Bytes("reserved", 56, 8)
)

func wrongRecord(f *Format, r Record) error {
	return fmt.Errorf("encode %s: got %T", f.Name, r)
}

func acsqFormat() *Format {
	return &Format{
		Kind: KindAcsqLog, Family: FamilyStars, Name: "stars.acsq_log",
		Tags: []uint8{0, 1}, Width: 64,
		Fields: []Field{
			acsqHeader, acsqFuncType, acsqCnt, acsqTaskType,
			acsqStreamID, acsqTaskID, acsqAccID, acsqSysCnt, acsqReserved,
		},
		Columns: []string{"func_type", "cnt", "task_type", "stream_id", "task_id", "acc_id", "timestamp"},
		decode: func(_ *Format, b []byte) (Record, error) {
			return AcsqLog{
				FuncType:  uint8(acsqFuncType.Get(b)),
				Cnt:       uint8(acsqCnt.Get(b)),
				TaskType:  uint8(acsqTaskType.Get(b)),
				StreamID:  uint16(acsqStreamID.Get(b)),
				TaskID:    uint16(acsqTaskID.Get(b)),
				AccID:     uint16(acsqAccID.Get(b)),
				Timestamp: acsqSysCnt.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(AcsqLog)
			if !ok {
				return wrongRecord(f, r)
			}
			acsqFuncType.Put(b, uint64(rec.FuncType))
			acsqCnt.Put(b, uint64(rec.Cnt))
			acsqTaskType.Put(b, uint64(rec.TaskType))
			acsqStreamID.Put(b, uint64(rec.StreamID))
			acsqTaskID.Put(b, uint64(rec.TaskID))
			acsqAccID.Put(b, uint64(rec.AccID))
			acsqSysCnt.Put(b, rec.Timestamp)
			return nil
		},
	}
}

func fftsThreadFormat() *Format {
	return &Format{
		Kind: KindFftsThreadLog, Family: FamilyStars, Name: "stars.ffts_thread_log",
		Tags: []uint8{34, 35}, Width: 64,
		Fields: []Field{
			fftsHeader, fftsFuncType, fftsCnt, fftsThreadType,
			fftsStreamID, fftsTaskID, fftsSubtaskID, fftsThreadID,
			fftsAttr, fftsSubtaskType, fftsType,
			fftsReserved0, fftsSysCnt, fftsReserved1,
		},
		Columns: []string{
			"func_type", "cnt", "thread_type", "stream_id", "task_id", "subtask_id",
			"thread_id", "subtask_type", "ffts_type", "timestamp",
		},
		decode: func(_ *Format, b []byte) (Record, error) {
			return FftsThreadLog{
				FuncType:    uint8(fftsFuncType.Get(b)),
				Cnt:         uint8(fftsCnt.Get(b)),
				ThreadType:  uint8(fftsThreadType.Get(b)),
				StreamID:    uint16(fftsStreamID.Get(b)),
				TaskID:      uint16(fftsTaskID.Get(b)),
				SubtaskID:   uint16(fftsSubtaskID.Get(b)),
				ThreadID:    uint16(fftsThreadID.Get(b)),
				SubtaskType: uint8(fftsSubtaskType.Get(b)),
				FftsType:    uint8(fftsType.Get(b)),
				Timestamp:   fftsSysCnt.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(FftsThreadLog)
			if !ok {
				return wrongRecord(f, r)
			}
			fftsFuncType.Put(b, uint64(rec.FuncType))
			fftsCnt.Put(b, uint64(rec.Cnt))
			fftsThreadType.Put(b, uint64(rec.ThreadType))
			fftsStreamID.Put(b, uint64(rec.StreamID))
			fftsTaskID.Put(b, uint64(rec.TaskID))
			fftsSubtaskID.Put(b, uint64(rec.SubtaskID))
			fftsThreadID.Put(b, uint64(rec.ThreadID))
			fftsSubtaskType.Put(b, uint64(rec.SubtaskType))
			fftsType.Put(b, uint64(rec.FftsType))
			fftsSysCnt.Put(b, rec.Timestamp)
			return nil
		},
	}
}

func pmuCounter(i int) Field {
	return U64(fmt.Sprintf("counter_%d", i), pmuPrefix+i*pmuCounterSize)
}

func pmuFormat(mode PmuMode) *Format {
	slots := mode.Slots()
	fields := []Field{
		pmuHeader, pmuFuncType, pmuOverflow,
		pmuStreamID, pmuTaskID, pmuSubtaskID, pmuCounterNum, pmuSubtaskType,
		pmuReserved0, pmuTotalCycle, pmuStartCnt, pmuEndCnt, pmuReserved1,
	}
	for i := 0; i < slots; i++ {
		fields = append(fields, pmuCounter(i))
	}
	name := "stars.ffts_pmu"
	if mode == PmuFftsPlus {
		name = "stars.ffts_plus_pmu"
	}
	return &Format{
		Kind: KindFftsPmu, Family: FamilyStars, Name: name,
		Tags: []uint8{40}, Width: pmuPrefix + slots*pmuCounterSize,
		Fields: fields,
		Columns: []string{
			"mode", "overflow", "stream_id", "task_id", "subtask_id", "subtask_type",
			"total_cycles", "start_cnt", "end_cnt", "counter_num", "counters",
		},
		slots: slots,
		decode: func(f *Format, b []byte) (Record, error) {
			// First pass: the fixed prefix tells how many slots are in use.
			n := int(pmuCounterNum.Get(b))
			if n > f.slots {
				return nil, &DecodeError{
					Code:    ErrCodeLengthMismatch,
					Kind:    KindFftsPmu,
					Message: fmt.Sprintf("counter_num %d exceeds %d slots", n, f.slots),
				}
			}
			rec := FftsPmu{
				Mode:        mode,
				Overflow:    pmuOverflow.Get(b) == 1,
				StreamID:    uint16(pmuStreamID.Get(b)),
				TaskID:      uint16(pmuTaskID.Get(b)),
				SubtaskID:   uint16(pmuSubtaskID.Get(b)),
				SubtaskType: uint8(pmuSubtaskType.Get(b)),
				TotalCycles: pmuTotalCycle.Get(b),
				StartCnt:    pmuStartCnt.Get(b),
				EndCnt:      pmuEndCnt.Get(b),
				Counters:    make([]uint64, n),
			}
			// Second pass over the resliced counter array.
			tail := b[pmuPrefix : pmuPrefix+n*pmuCounterSize]
			for i := range rec.Counters {
				rec.Counters[i] = U64("counter", i*pmuCounterSize).Get(tail)
			}
			return rec, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(FftsPmu)
			if !ok {
				return wrongRecord(f, r)
			}
			if len(rec.Counters) > f.slots {
				return fmt.Errorf("encode %s: %d counters exceed %d slots", f.Name, len(rec.Counters), f.slots)
			}
			pmuFuncType.Put(b, uint64(f.Tags[0]))
			if rec.Overflow {
				pmuOverflow.Put(b, 1)
			}
			pmuStreamID.Put(b, uint64(rec.StreamID))
			pmuTaskID.Put(b, uint64(rec.TaskID))
			pmuSubtaskID.Put(b, uint64(rec.SubtaskID))
			pmuCounterNum.Put(b, uint64(len(rec.Counters)))
			pmuSubtaskType.Put(b, uint64(rec.SubtaskType))
			pmuTotalCycle.Put(b, rec.TotalCycles)
			pmuStartCnt.Put(b, rec.StartCnt)
			pmuEndCnt.Put(b, rec.EndCnt)
			for i, c := range rec.Counters {
				pmuCounter(i).Put(b, c)
			}
			return nil
		},
	}
}

func hwtsFormat() *Format {
	return &Format{
		Kind: KindHwtsLog, Family: FamilyHwts, Name: "hwts.task_log",
		Tags: []uint8{0, 1}, Width: 64,
		Fields: []Field{
			hwtsHeader, hwtsRptType, hwtsCnt, hwtsCoreID, hwtsStreamID, hwtsTaskID,
			hwtsBlockDim, hwtsLane0, hwtsTimestamp[0], hwtsWarn, hwtsLane1, hwtsTimestamp[1],
			hwtsPad1, hwtsLane2, hwtsTimestamp[2], hwtsPad2, hwtsLane3, hwtsTimestamp[3],
			hwtsPad3, hwtsLane4, hwtsTimestamp[4], hwtsPad4, hwtsReserved,
		},
		Columns: []string{
			"rpt_type", "cnt", "core_id", "stream_id", "task_id", "block_dim", "warn", "timestamp",
		},
		decode: func(_ *Format, b []byte) (Record, error) {
			return HwtsLog{
				RptType:   uint8(hwtsRptType.Get(b)),
				Cnt:       uint8(hwtsCnt.Get(b)),
				CoreID:    uint8(hwtsCoreID.Get(b)),
				StreamID:  uint16(hwtsStreamID.Get(b)),
				TaskID:    uint16(hwtsTaskID.Get(b)),
				BlockDim:  uint16(hwtsBlockDim.Get(b)),
				Warn:      uint16(hwtsWarn.Get(b)),
				Timestamp: hwtsTimestamp.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(HwtsLog)
			if !ok {
				return wrongRecord(f, r)
			}
			if rec.Timestamp > hwtsTimestamp.Max() {
				return fmt.Errorf("encode %s: timestamp %d exceeds 60 bits", f.Name, rec.Timestamp)
			}
			hwtsRptType.Put(b, uint64(rec.RptType))
			hwtsCnt.Put(b, uint64(rec.Cnt))
			hwtsCoreID.Put(b, uint64(rec.CoreID))
			hwtsStreamID.Put(b, uint64(rec.StreamID))
			hwtsTaskID.Put(b, uint64(rec.TaskID))
			hwtsBlockDim.Put(b, uint64(rec.BlockDim))
			hwtsWarn.Put(b, uint64(rec.Warn))
			hwtsTimestamp.Put(b, rec.Timestamp)
			return nil
		},
	}
}

func putTsHeader(f *Format, b []byte) {
	tsRptType.Put(b, uint64(f.Tags[0]))
	tsBufSize.Put(b, uint64(f.Width))
}

func flipFormat() *Format {
	return &Format{
		Kind: KindTaskFlip, Family: FamilyTsTrack, Name: "tstrack.task_flip",
		Tags: []uint8{7}, Width: 24,
		Fields: []Field{
			tsMode, tsRptType, tsBufSize,
			flipStreamID, flipNum, flipTimestamp, flipTaskID, flipReserved,
		},
		Columns: []string{"stream_id", "flip_num", "task_id", "timestamp"},
		decode: func(_ *Format, b []byte) (Record, error) {
			return TaskFlip{
				StreamID:  uint16(flipStreamID.Get(b)),
				FlipNum:   uint16(flipNum.Get(b)),
				TaskID:    uint16(flipTaskID.Get(b)),
				Timestamp: flipTimestamp.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(TaskFlip)
			if !ok {
				return wrongRecord(f, r)
			}
			putTsHeader(f, b)
			flipStreamID.Put(b, uint64(rec.StreamID))
			flipNum.Put(b, uint64(rec.FlipNum))
			flipTimestamp.Put(b, rec.Timestamp)
			flipTaskID.Put(b, uint64(rec.TaskID))
			return nil
		},
	}
}

func stepFormat() *Format {
	return &Format{
		Kind: KindStepTrace, Family: FamilyTsTrack, Name: "tstrack.step_trace",
		Tags: []uint8{3}, Width: 40,
		Fields: []Field{
			tsMode, tsRptType, tsBufSize, stepReserved0, stepTimestamp,
			stepIndexID, stepModelID, stepStreamID, stepTaskID, stepTagID, stepReserved1,
		},
		Columns: []string{"stream_id", "task_id", "tag_id", "index_id", "model_id", "timestamp"},
		decode: func(_ *Format, b []byte) (Record, error) {
			return StepTrace{
				StreamID:  uint16(stepStreamID.Get(b)),
				TaskID:    uint16(stepTaskID.Get(b)),
				TagID:     uint16(stepTagID.Get(b)),
				IndexID:   stepIndexID.Get(b),
				ModelID:   stepModelID.Get(b),
				Timestamp: stepTimestamp.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(StepTrace)
			if !ok {
				return wrongRecord(f, r)
			}
			putTsHeader(f, b)
			stepTimestamp.Put(b, rec.Timestamp)
			stepIndexID.Put(b, rec.IndexID)
			stepModelID.Put(b, rec.ModelID)
			stepStreamID.Put(b, uint64(rec.StreamID))
			stepTaskID.Put(b, uint64(rec.TaskID))
			stepTagID.Put(b, uint64(rec.TagID))
			return nil
		},
	}
}

func resetFormat() *Format {
	return &Format{
		Kind: KindStreamReset, Family: FamilyTsTrack, Name: "tstrack.stream_reset",
		Tags: []uint8{10}, Width: 24,
		Fields: []Field{
			tsMode, tsRptType, tsBufSize,
			resetStreamID, resetReason, resetTimestamp, resetReserved,
		},
		Columns: []string{"stream_id", "reason", "timestamp"},
		decode: func(_ *Format, b []byte) (Record, error) {
			return StreamReset{
				StreamID:  uint16(resetStreamID.Get(b)),
				Reason:    uint16(resetReason.Get(b)),
				Timestamp: resetTimestamp.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(StreamReset)
			if !ok {
				return wrongRecord(f, r)
			}
			putTsHeader(f, b)
			resetStreamID.Put(b, uint64(rec.StreamID))
			resetReason.Put(b, uint64(rec.Reason))
			resetTimestamp.Put(b, rec.Timestamp)
			return nil
		},
	}
}

func apiFormat() *Format {
	return &Format{
		Kind: KindApiEvent, Family: FamilyHost, Name: "host.api_event",
		Width: 40, Magic: HostMagic,
		Fields: []Field{
			hostMagic, hostLevel, hostType, hostThreadID,
			apiReserved, apiStart, apiEnd, apiItemID,
		},
		Columns: []string{"level", "type", "thread_id", "start", "end", "item_id"},
		decode: func(_ *Format, b []byte) (Record, error) {
			return ApiEvent{
				Level:    uint16(hostLevel.Get(b)),
				Type:     uint32(hostType.Get(b)),
				ThreadID: uint32(hostThreadID.Get(b)),
				Start:    apiStart.Get(b),
				End:      apiEnd.Get(b),
				ItemID:   apiItemID.Get(b),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(ApiEvent)
			if !ok {
				return wrongRecord(f, r)
			}
			hostLevel.Put(b, uint64(rec.Level))
			hostType.Put(b, uint64(rec.Type))
			hostThreadID.Put(b, uint64(rec.ThreadID))
			apiStart.Put(b, rec.Start)
			apiEnd.Put(b, rec.End)
			apiItemID.Put(b, rec.ItemID)
			return nil
		},
	}
}

func nodeFormat() *Format {
	return &Format{
		Kind: KindNodeTask, Family: FamilyHost, Name: "host.node_task",
		Width: 64, Magic: HostMagic,
		Fields: []Field{
			hostMagic, hostLevel, hostType, hostThreadID, nodeDataLen, nodeTimestamp,
			nodeOpName, nodeOpType, nodeTaskType, nodeBlockDim, nodeStreamID, nodeTaskID,
			nodeReserved,
		},
		Columns: []string{
			"level", "type", "thread_id", "timestamp", "op_name", "op_type",
			"task_type", "block_dim", "stream_id", "task_id",
		},
		decode: func(_ *Format, b []byte) (Record, error) {
			return NodeTask{
				Level:     uint16(hostLevel.Get(b)),
				Type:      uint32(hostType.Get(b)),
				ThreadID:  uint32(hostThreadID.Get(b)),
				Timestamp: nodeTimestamp.Get(b),
				OpName:    nodeOpName.Get(b),
				OpType:    nodeOpType.Get(b),
				TaskType:  uint32(nodeTaskType.Get(b)),
				BlockDim:  uint32(nodeBlockDim.Get(b)),
				StreamID:  uint32(nodeStreamID.Get(b)),
				TaskID:    uint32(nodeTaskID.Get(b)),
			}, nil
		},
		encode: func(f *Format, r Record, b []byte) error {
			rec, ok := r.(NodeTask)
			if !ok {
				return wrongRecord(f, r)
			}
			hostLevel.Put(b, uint64(rec.Level))
			hostType.Put(b, uint64(rec.Type))
			hostThreadID.Put(b, uint64(rec.ThreadID))
			nodeDataLen.Put(b, uint64(f.Width))
			nodeTimestamp.Put(b, rec.Timestamp)
			nodeOpName.Put(b, rec.OpName)
			nodeOpType.Put(b, rec.OpType)
			nodeTaskType.Put(b, uint64(rec.TaskType))
			nodeBlockDim.Put(b, uint64(rec.BlockDim))
			nodeStreamID.Put(b, uint64(rec.StreamID))
			nodeTaskID.Put(b, uint64(rec.TaskID))
			return nil
		},
	}
}

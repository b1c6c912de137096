package serial2csv

// DefaultBufferCapacity is the line buffer size. One byte is reserved, so
// records of up to DefaultBufferCapacity-1 bytes are accepted.
const DefaultBufferCapacity = 1024

// Overflow describes a record that outgrew the line buffer.
type Overflow struct {
	// Discarded is the number of bytes thrown away when the overflow was
	// detected: the buffered prefix plus the byte that did not fit.
	Discarded int
}

// Reassembler turns an arbitrarily chunked byte stream into newline
// terminated records. It keeps its partial record across Feed calls, so
// chunk boundaries need not line up with record boundaries.
//
// A record longer than the buffer is dropped whole: OnOverflow fires, the
// buffered bytes are discarded and every byte up to and including the next
// newline is skipped. The record after that newline starts clean.
//
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	buf        []byte
	discarding bool
	overflows  uint64
	dropped    uint64

	// OnOverflow, if set, is called each time a record overflows the buffer.
	OnOverflow func(Overflow)
}

// NewReassembler returns a Reassembler whose buffer holds capacity-1 bytes.
// Capacities below 2 are raised to 2.
func NewReassembler(capacity int) *Reassembler {
	if capacity < 2 {
		capacity = 2
	}
	return &Reassembler{buf: make([]byte, 0, capacity-1)}
}

// Feed consumes chunk and calls emit once for every completed record, in
// stream order. The record slice aliases the internal buffer and is only
// valid until emit returns.
func (r *Reassembler) Feed(chunk []byte, emit func(record []byte)) {
	for _, b := range chunk {
		if r.discarding {
			r.dropped++
			if b == '\n' {
				r.discarding = false
			}
			continue
		}
		if b == '\n' {
			emit(r.buf)
			r.buf = r.buf[:0]
			continue
		}
		if len(r.buf) < cap(r.buf) {
			r.buf = append(r.buf, b)
			continue
		}
		r.overflow()
	}
}

func (r *Reassembler) overflow() {
	discarded := len(r.buf) + 1
	r.overflows++
	r.dropped += uint64(discarded)
	r.buf = r.buf[:0]
	r.discarding = true
	if r.OnOverflow != nil {
		r.OnOverflow(Overflow{Discarded: discarded})
	}
}

// Len reports the number of bytes of the record in progress.
func (r *Reassembler) Len() int { return len(r.buf) }

// Capacity reports the longest record the buffer accepts.
func (r *Reassembler) Capacity() int { return cap(r.buf) }

// Overflows reports how many records were dropped for being too long.
func (r *Reassembler) Overflows() uint64 { return r.overflows }

// Dropped reports how many bytes were discarded by overflow recovery,
// including the terminators of dropped records.
func (r *Reassembler) Dropped() uint64 { return r.dropped }

// Reset forgets the record in progress.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.discarding = false
}

package session

// Assembler buffers raw generated bytes and releases only complete UTF-8
// sequences. Token pieces routinely split multi-byte characters across
// generation steps; the assembler holds the incomplete tail back until the
// continuation bytes arrive. A malformed byte is treated the same as an
// incomplete tail: models are not expected to emit structurally invalid
// bytes except at a split character boundary, so the policy favors progress
// over strictness and never surfaces an error.
type Assembler struct {
	buf []byte
}

// Push appends raw piece bytes to the buffer.
func (a *Assembler) Push(p []byte) {
	a.buf = append(a.buf, p...)
}

// Drain returns the longest prefix of the buffer that forms complete UTF-8
// sequences, keeping the remainder buffered. The second return is false
// when nothing is releasable yet.
func (a *Assembler) Drain() (string, bool) {
	valid := a.validPrefix()
	if valid == 0 {
		return "", false
	}
	out := string(a.buf[:valid])
	a.buf = a.buf[valid:]
	return out, true
}

// Flush ends the stream: it returns any remaining complete sequences and
// drops an incomplete or malformed tail. The tail is never surfaced.
func (a *Assembler) Flush() string {
	out := string(a.buf[:a.validPrefix()])
	a.buf = nil
	return out
}

// Pending returns the number of bytes held back.
func (a *Assembler) Pending() int { return len(a.buf) }

// validPrefix scans lead bytes and their declared continuation counts,
// stopping at the first sequence that is truncated or malformed.
func (a *Assembler) validPrefix() int {
	valid := 0
	for i := 0; i < len(a.buf); {
		n := seqLen(a.buf[i])
		if n == 0 || i+n > len(a.buf) {
			break
		}
		ok := true
		for j := 1; j < n; j++ {
			if a.buf[i+j]&0xC0 != 0x80 {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		i += n
		valid = i
	}
	return valid
}

// seqLen returns the byte length a UTF-8 lead byte declares, or 0 if the
// byte cannot start a sequence.
func seqLen(b byte) int {
	switch {
	case b&0x80 == 0x00:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

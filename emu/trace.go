package emu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/ooosim/insts"
)

// WordReader returns the raw instruction word stored at pc.
type WordReader interface {
	ReadWord(pc uint64) (uint32, bool)
}

// TraceReader decodes execution traces.
//
// A trace is a text file with one executed instruction per line:
//
//	<pc> <word|-> [a=<addr>] [t] [T]
//
// All numbers are hexadecimal. A word of "-" is read from the image. The
// a= field gives the effective address of a memory op or the target of a
// register jump; t marks a taken branch; T marks wrong-path work. Blank
// lines and lines starting with # are skipped.
type TraceReader struct {
	decoder *insts.Decoder
	image   WordReader
}

// TraceOption configures a TraceReader.
type TraceOption func(*TraceReader)

// WithImage lets trace lines omit the instruction word.
func WithImage(img WordReader) TraceOption {
	return func(t *TraceReader) {
		t.image = img
	}
}

// NewTraceReader creates a trace reader.
func NewTraceReader(opts ...TraceOption) *TraceReader {
	t := &TraceReader{decoder: insts.NewDecoder()}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ReadFile reads the trace stored at path.
func (t *TraceReader) ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	return t.Read(f)
}

// Read decodes every line of r.
func (t *TraceReader) Read(r io.Reader) ([]Record, error) {
	var recs []Record

	sc := bufio.NewScanner(r)
	line := 0

	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		rec, err := t.parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}

		rec.Seq = uint64(len(recs))
		recs = append(recs, rec)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return recs, nil
}

func (t *TraceReader) parseLine(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Record{}, fmt.Errorf("want at least pc and word, got %q", text)
	}

	pc, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad pc %q: %w", fields[0], err)
	}

	word, err := t.word(fields[1], pc)
	if err != nil {
		return Record{}, err
	}

	dec := t.decoder.Decode(word, pc)
	rec := Record{
		PC:      pc,
		Inst:    dec.Inst,
		Size:    dec.Size,
		Syscall: dec.Syscall,
	}

	hasAddr := false

	for _, f := range fields[2:] {
		switch {
		case f == "t":
			rec.Taken = true
		case f == "T":
			rec.Transient = true
		case strings.HasPrefix(f, "a="):
			rec.Addr, err = strconv.ParseUint(f[2:], 16, 64)
			if err != nil {
				return Record{}, fmt.Errorf("bad address %q: %w", f, err)
			}
			hasAddr = true
		default:
			return Record{}, fmt.Errorf("unknown field %q", f)
		}
	}

	if rec.Inst.Op.IsBranch() {
		resolveControl(&rec, dec, hasAddr)
	}

	return rec, nil
}

func (t *TraceReader) word(field string, pc uint64) (uint32, error) {
	if field == "-" {
		if t.image == nil {
			return 0, fmt.Errorf("no image to read pc 0x%x from", pc)
		}

		w, ok := t.image.ReadWord(pc)
		if !ok {
			return 0, fmt.Errorf("pc 0x%x is outside the image", pc)
		}

		return w, nil
	}

	w, err := strconv.ParseUint(field, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad word %q: %w", field, err)
	}

	return uint32(w), nil
}

// resolveControl fills the direction and target of a control-flow record.
// Jumps, calls, and returns are always taken.
func resolveControl(rec *Record, dec insts.Decoded, hasAddr bool) {
	op := rec.Inst.Op
	if op != insts.OpBALULBranch && op != insts.OpBALURBranch {
		rec.Taken = true
	}

	next := rec.PC + 4
	if dec.Compressed {
		next = rec.PC + 2
	}

	switch {
	case hasAddr:
	case !rec.Taken:
		rec.Addr = next
	case dec.Target != 0:
		rec.Addr = dec.Target
	}
}

// Package loader reads the instruction image of a RISC-V ELF executable so
// that trace records carrying only a program counter can be decoded.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment is mapped.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Contains reports whether the n bytes at addr lie in the file-backed part
// of the segment.
func (s *Segment) Contains(addr uint64, n int) bool {
	return addr >= s.VirtAddr && addr+uint64(n) <= s.VirtAddr+uint64(len(s.Data))
}

// Program is the loadable image of an executable.
type Program struct {
	// EntryPoint is the virtual address where execution begins.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// Load parses a 64-bit RISC-V ELF executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: f.Entry}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// ReadWord returns the instruction word at pc. A 16-bit encoding is
// returned in the low half of the word. The second result is false when pc
// lies outside every executable segment.
func (p *Program) ReadWord(pc uint64) (uint32, bool) {
	for i := range p.Segments {
		seg := &p.Segments[i]
		if seg.Flags&SegmentFlagExecute == 0 || !seg.Contains(pc, 2) {
			continue
		}

		off := pc - seg.VirtAddr
		low := binary.LittleEndian.Uint16(seg.Data[off:])
		if low&0x3 != 0x3 {
			return uint32(low), true
		}

		if !seg.Contains(pc, 4) {
			return 0, false
		}

		return binary.LittleEndian.Uint32(seg.Data[off:]), true
	}

	return 0, false
}

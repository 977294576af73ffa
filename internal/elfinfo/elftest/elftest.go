// Package elftest builds small synthetic ELF objects for tests. The output
// only carries what elfinfo reads: the file header, an optional PT_INTERP
// segment, a dynamic section with DT_NEEDED entries and an optional Android
// build note.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
)

// Spec describes the object to build. The zero value is a 64-bit AArch64
// shared object without dependencies.
type Spec struct {
	Class        elf.Class
	Machine      elf.Machine
	Type         elf.Type
	Interp       string
	Needed       []string
	AndroidIdent bool
}

// Lib64 returns the spec of an arm64 shared object built by the platform.
func Lib64(needed ...string) Spec {
	return Spec{Needed: needed, AndroidIdent: true}
}

// Lib32 returns the spec of an arm shared object built by the platform.
func Lib32(needed ...string) Spec {
	return Spec{Class: elf.ELFCLASS32, Machine: elf.EM_ARM, Needed: needed, AndroidIdent: true}
}

type section struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	data    []byte
	link    uint32
	entsize uint64
	off     uint64
	nameOff uint32
}

// Build encodes the spec as a little-endian ELF image.
func Build(s Spec) []byte {
	if s.Class == elf.ELFCLASSNONE {
		s.Class = elf.ELFCLASS64
	}
	if s.Machine == elf.EM_NONE {
		if s.Class == elf.ELFCLASS64 {
			s.Machine = elf.EM_AARCH64
		} else {
			s.Machine = elf.EM_ARM
		}
	}
	if s.Type == elf.ET_NONE {
		s.Type = elf.ET_DYN
	}
	is64 := s.Class == elf.ELFCLASS64
	order := binary.LittleEndian

	ehsize, phentsize, shentsize, dynsize := uint64(52), uint64(32), uint64(40), 8
	if is64 {
		ehsize, phentsize, shentsize, dynsize = 64, 56, 64, 16
	}

	sections := []*section{{}}
	var interp *section
	if s.Interp != "" {
		interp = &section{name: ".interp", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC, data: append([]byte(s.Interp), 0)}
		sections = append(sections, interp)
	}

	dynstr := []byte{0}
	dynamic := make([]byte, 0, (len(s.Needed)+1)*dynsize)
	for _, name := range s.Needed {
		dynamic = appendDyn(dynamic, is64, elf.DT_NEEDED, uint64(len(dynstr)))
		dynstr = append(append(dynstr, name...), 0)
	}
	dynamic = appendDyn(dynamic, is64, elf.DT_NULL, 0)

	strIndex := uint32(len(sections))
	sections = append(sections,
		&section{name: ".dynstr", typ: elf.SHT_STRTAB, flags: elf.SHF_ALLOC, data: dynstr},
		&section{name: ".dynamic", typ: elf.SHT_DYNAMIC, flags: elf.SHF_ALLOC | elf.SHF_WRITE, data: dynamic, link: strIndex, entsize: uint64(dynsize)},
	)
	if s.AndroidIdent {
		sections = append(sections, &section{name: androidIdentSection, typ: elf.SHT_NOTE, flags: elf.SHF_ALLOC, data: androidNote()})
	}

	shstrtab := &section{name: ".shstrtab", typ: elf.SHT_STRTAB}
	sections = append(sections, shstrtab)
	names := []byte{0}
	for _, sec := range sections[1:] {
		sec.nameOff = uint32(len(names))
		names = append(append(names, sec.name...), 0)
	}
	shstrtab.data = names

	var phnum uint64
	if interp != nil {
		phnum = 1
	}
	off := ehsize + phnum*phentsize
	for _, sec := range sections[1:] {
		off = align(off, 8)
		sec.off = off
		off += uint64(len(sec.data))
	}
	shoff := align(off, 8)

	var buf bytes.Buffer
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(s.Class)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if is64 {
		write(&buf, order, elf.Header64{
			Ident: ident, Type: uint16(s.Type), Machine: uint16(s.Machine), Version: uint32(elf.EV_CURRENT),
			Phoff: phoff(phnum, ehsize), Shoff: shoff, Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum),
			Shentsize: uint16(shentsize), Shnum: uint16(len(sections)), Shstrndx: uint16(len(sections) - 1),
		})
		if interp != nil {
			n := uint64(len(interp.data))
			write(&buf, order, elf.Prog64{
				Type: uint32(elf.PT_INTERP), Flags: uint32(elf.PF_R),
				Off: interp.off, Vaddr: interp.off, Paddr: interp.off, Filesz: n, Memsz: n, Align: 1,
			})
		}
	} else {
		write(&buf, order, elf.Header32{
			Ident: ident, Type: uint16(s.Type), Machine: uint16(s.Machine), Version: uint32(elf.EV_CURRENT),
			Phoff: uint32(phoff(phnum, ehsize)), Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum),
			Shentsize: uint16(shentsize), Shnum: uint16(len(sections)), Shstrndx: uint16(len(sections) - 1),
		})
		if interp != nil {
			n := uint32(len(interp.data))
			write(&buf, order, elf.Prog32{
				Type: uint32(elf.PT_INTERP), Flags: uint32(elf.PF_R),
				Off: uint32(interp.off), Vaddr: uint32(interp.off), Paddr: uint32(interp.off), Filesz: n, Memsz: n, Align: 1,
			})
		}
	}

	for _, sec := range sections[1:] {
		pad(&buf, sec.off)
		buf.Write(sec.data)
	}
	pad(&buf, shoff)

	for _, sec := range sections {
		if is64 {
			write(&buf, order, elf.Section64{
				Name: sec.nameOff, Type: uint32(sec.typ), Flags: uint64(sec.flags),
				Off: sec.off, Size: uint64(len(sec.data)), Link: sec.link,
				Addralign: 1, Entsize: sec.entsize,
			})
		} else {
			write(&buf, order, elf.Section32{
				Name: sec.nameOff, Type: uint32(sec.typ), Flags: uint32(sec.flags),
				Off: uint32(sec.off), Size: uint32(len(sec.data)), Link: sec.link,
				Addralign: 1, Entsize: uint32(sec.entsize),
			})
		}
	}
	return buf.Bytes()
}

// WriteFile builds the spec into path, creating parent directories.
func WriteFile(path string, s Spec, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, Build(s), perm)
}

const androidIdentSection = ".note.android.ident"

// androidNote is an Elf_Nhdr with name "Android" and a 4-byte API level.
func androidNote() []byte {
	name := []byte("Android\x00")
	out := make([]byte, 12, 12+len(name)+4)
	binary.LittleEndian.PutUint32(out[0:], uint32(len(name)))
	binary.LittleEndian.PutUint32(out[4:], 4)
	binary.LittleEndian.PutUint32(out[8:], 1)
	out = append(out, name...)
	return binary.LittleEndian.AppendUint32(out, 28)
}

func appendDyn(b []byte, is64 bool, tag elf.DynTag, val uint64) []byte {
	if is64 {
		b = binary.LittleEndian.AppendUint64(b, uint64(tag))
		return binary.LittleEndian.AppendUint64(b, val)
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(tag))
	return binary.LittleEndian.AppendUint32(b, uint32(val))
}

func phoff(phnum, ehsize uint64) uint64 {
	if phnum == 0 {
		return 0
	}
	return ehsize
}

func align(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

func pad(buf *bytes.Buffer, off uint64) {
	for uint64(buf.Len()) < off {
		buf.WriteByte(0)
	}
}

func write(buf *bytes.Buffer, order binary.ByteOrder, v any) {
	// bytes.Buffer writes never fail.
	_ = binary.Write(buf, order, v)
}

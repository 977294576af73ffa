// Package elfinfo extracts the facts the dependency checker needs from an
// ELF file: word size, object type, program interpreter, the Android build
// note and the DT_NEEDED entries.
package elfinfo

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
)

// AndroidIdentSection is the note section emitted by the Android build
// system into every ELF object it links.
const AndroidIdentSection = ".note.android.ident"

// MaxInterpLen bounds the PT_INTERP segment; a program interpreter is a
// path and never longer than PATH_MAX.
const MaxInterpLen = 4096

// ErrNotELF is returned by Open when the file does not start with the ELF
// magic. Callers skip such files silently.
var ErrNotELF = errors.New("elfinfo: not an ELF file")

// MalformedError reports a file that carries the ELF magic but whose
// headers or sections cannot be decoded.
type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed ELF %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// File is an opened ELF object. It must be closed after use.
type File struct {
	path    string
	fh      *os.File
	ef      *elf.File
	bitness int
}

type abiSignature struct {
	class   elf.Class
	machine elf.Machine
}

// Android ABI names as reported by ro.product.cpu.abilist.
var abiSignatures = map[string]abiSignature{
	"armeabi":     {elf.ELFCLASS32, elf.EM_ARM},
	"armeabi-v7a": {elf.ELFCLASS32, elf.EM_ARM},
	"arm64-v8a":   {elf.ELFCLASS64, elf.EM_AARCH64},
	"x86":         {elf.ELFCLASS32, elf.EM_386},
	"x86_64":      {elf.ELFCLASS64, elf.EM_X86_64},
	"mips":        {elf.ELFCLASS32, elf.EM_MIPS},
	"mips64":      {elf.ELFCLASS64, elf.EM_MIPS},
	"riscv64":     {elf.ELFCLASS64, elf.EM_RISCV},
}

// Open parses the ELF file at path. It returns ErrNotELF for files without
// the ELF magic and a *MalformedError for everything else that fails.
func Open(path string) (file *File, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = fh.Close()
		}
	}()

	magic := make([]byte, len(elf.ELFMAG))
	if _, err := io.ReadFull(fh, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotELF
		}
		return nil, err
	}
	if !bytes.Equal(magic, []byte(elf.ELFMAG)) {
		return nil, ErrNotELF
	}

	defer recoverMalformed(path, &err)

	ef, err := elf.NewFile(fh)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}

	var bitness int
	switch ef.Class {
	case elf.ELFCLASS32:
		bitness = 32
	case elf.ELFCLASS64:
		bitness = 64
	default:
		return nil, &MalformedError{Path: path, Err: fmt.Errorf("unknown ELF class %v", ef.Class)}
	}

	return &File{path: path, fh: fh, ef: ef, bitness: bitness}, nil
}

// debug/elf is not hardened against hostile input and may panic on
// truncated tables.
func recoverMalformed(path string, err *error) {
	if r := recover(); r != nil {
		*err = &MalformedError{Path: path, Err: fmt.Errorf("parser panic: %v", r)}
	}
}

// Path returns the local path the file was opened from.
func (f *File) Path() string { return f.path }

// Bitness is 32 or 64.
func (f *File) Bitness() int { return f.bitness }

// Machine returns the ELF e_machine value.
func (f *File) Machine() elf.Machine { return f.ef.Machine }

// IsExecutable reports whether the ELF type is ET_EXEC.
func (f *File) IsExecutable() bool { return f.ef.Type == elf.ET_EXEC }

// IsSharedObject reports whether the ELF type is ET_DYN.
func (f *File) IsSharedObject() bool { return f.ef.Type == elf.ET_DYN }

// HasAndroidIdent reports whether the Android build note is present.
func (f *File) HasAndroidIdent() bool {
	return f.ef.Section(AndroidIdentSection) != nil
}

// MatchABI reports whether the file was built for the given Android ABI.
// Unknown ABI names never match.
func (f *File) MatchABI(abi string) bool {
	sig, ok := abiSignatures[abi]
	if !ok {
		return false
	}
	return f.ef.Class == sig.class && f.ef.Machine == sig.machine
}

// Interpreter returns the PT_INTERP path, or "" when the file has none.
func (f *File) Interpreter() (interp string, err error) {
	defer recoverMalformed(f.path, &err)
	for _, prog := range f.ef.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		if prog.Filesz > MaxInterpLen {
			return "", &MalformedError{Path: f.path, Err: fmt.Errorf("PT_INTERP of %d bytes exceeds %d", prog.Filesz, MaxInterpLen)}
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil && err != io.EOF {
			return "", &MalformedError{Path: f.path, Err: fmt.Errorf("read PT_INTERP: %w", err)}
		}
		return string(bytes.TrimRight(data, "\x00")), nil
	}
	return "", nil
}

// Needed returns the DT_NEEDED names in declaration order.
func (f *File) Needed() (libs []string, err error) {
	defer recoverMalformed(f.path, &err)
	libs, err = f.ef.ImportedLibraries()
	if err != nil {
		return nil, &MalformedError{Path: f.path, Err: fmt.Errorf("read DT_NEEDED: %w", err)}
	}
	return libs, nil
}

// Close releases the underlying file.
func (f *File) Close() error {
	return f.fh.Close()
}

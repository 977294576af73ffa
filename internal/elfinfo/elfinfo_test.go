package elfinfo_test

import (
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajranjith/vndk-depcheck/internal/elfinfo"
	"github.com/ajranjith/vndk-depcheck/internal/elfinfo/elftest"
)

func writeSpec(t *testing.T, spec elftest.Spec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obj")
	require.NoError(t, elftest.WriteFile(path, spec, 0o644))
	return path
}

func TestOpen_SharedObject64(t *testing.T) {
	path := writeSpec(t, elftest.Lib64("libc.so", "libm.so", "libc.so"))

	f, err := elfinfo.Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 64, f.Bitness())
	require.True(t, f.IsSharedObject())
	require.False(t, f.IsExecutable())
	require.True(t, f.HasAndroidIdent())
	require.True(t, f.MatchABI("arm64-v8a"))
	require.False(t, f.MatchABI("armeabi-v7a"))
	require.False(t, f.MatchABI("x86_64"))
	require.False(t, f.MatchABI("sparc"))

	interp, err := f.Interpreter()
	require.NoError(t, err)
	require.Empty(t, interp)

	needed, err := f.Needed()
	require.NoError(t, err)
	require.Equal(t, []string{"libc.so", "libm.so", "libc.so"}, needed)
}

func TestOpen_Executable32WithInterpreter(t *testing.T) {
	path := writeSpec(t, elftest.Spec{
		Class:   elf.ELFCLASS32,
		Machine: elf.EM_386,
		Type:    elf.ET_EXEC,
		Interp:  "/vendor/bin/sh-linker",
		Needed:  []string{"libdl.so"},
	})

	f, err := elfinfo.Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 32, f.Bitness())
	require.True(t, f.IsExecutable())
	require.False(t, f.HasAndroidIdent())
	require.True(t, f.MatchABI("x86"))

	interp, err := f.Interpreter()
	require.NoError(t, err)
	require.Equal(t, "/vendor/bin/sh-linker", interp)

	needed, err := f.Needed()
	require.NoError(t, err)
	require.Equal(t, []string{"libdl.so"}, needed)
}

func TestInterpreter_Oversized(t *testing.T) {
	path := writeSpec(t, elftest.Spec{
		Type:   elf.ET_EXEC,
		Interp: "/" + strings.Repeat("x", elfinfo.MaxInterpLen),
	})

	f, err := elfinfo.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Interpreter()
	var malformed *elfinfo.MalformedError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, err.Error(), "PT_INTERP")
}

func TestOpen_NotELF(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "init.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/system/bin/sh\necho hi\n"), 0o755))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	for _, path := range []string{script, empty} {
		_, err := elfinfo.Open(path)
		require.ErrorIs(t, err, elfinfo.ErrNotELF, path)
	}
}

func TestOpen_Truncated(t *testing.T) {
	data := elftest.Build(elftest.Lib64("libc.so"))
	path := filepath.Join(t.TempDir(), "broken.so")
	require.NoError(t, os.WriteFile(path, data[:24], 0o644))

	_, err := elfinfo.Open(path)
	require.Error(t, err)
	require.False(t, errors.Is(err, elfinfo.ErrNotELF))

	var malformed *elfinfo.MalformedError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, path, malformed.Path)
}

package depcheck_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajranjith/vndk-depcheck/internal/depcheck"
)

func rec(path string, deps ...string) *depcheck.Record {
	bitness := 32
	if strings.Contains(path, "/lib64/") {
		bitness = 64
	}
	return depcheck.NewRecord(path, bitness, deps)
}

func namespaceOf(records ...*depcheck.Record) depcheck.Namespace {
	ns := depcheck.Namespace{}
	for _, r := range records {
		ns[r.Name] = r
	}
	return ns
}

func TestNewRecord(t *testing.T) {
	r := depcheck.NewRecord("/vendor/lib64/hw/libhw.so", 64, []string{"libc.so"})
	require.Equal(t, "libhw.so", r.Name)
	require.Equal(t, "/vendor/lib64/hw", r.TargetDir)
	require.Equal(t, 64, r.Bitness)
}

func TestStore_KeepsLoadOrderAndRejectsDuplicates(t *testing.T) {
	s := depcheck.NewStore()
	b := rec("/vendor/lib64/libb.so")
	a := rec("/vendor/lib/liba.so")
	c := rec("/vendor/lib64/libc.so")
	require.True(t, s.Add(b))
	require.True(t, s.Add(a))
	require.True(t, s.Add(c))
	require.False(t, s.Add(rec("/vendor/lib64/libb.so", "libz.so")))

	require.Equal(t, 3, s.Len())
	require.Equal(t, []*depcheck.Record{b, c}, s.Bitness(64))
	require.Equal(t, []*depcheck.Record{a}, s.Bitness(32))

	got, ok := s.Lookup("/vendor/lib64/libb.so")
	require.True(t, ok)
	require.Empty(t, got.Deps)
}

func TestTransitiveClosure(t *testing.T) {
	a := rec("/vendor/lib64/liba.so", "libb.so", "libc.so", "libmissing.so")
	b := rec("/vendor/lib64/libb.so", "libd.so")
	c := rec("/vendor/lib64/libc.so")
	d := rec("/vendor/lib64/libd.so")
	unreachable := rec("/vendor/lib64/libu.so", "liba.so")
	graph := namespaceOf(a, b, c, d, unreachable)

	got := depcheck.TransitiveClosure([]*depcheck.Record{a}, graph)
	require.Equal(t, []string{
		"/vendor/lib64/liba.so",
		"/vendor/lib64/libb.so",
		"/vendor/lib64/libc.so",
		"/vendor/lib64/libd.so",
	}, got.Paths())
}

func TestTransitiveClosure_Cycle(t *testing.T) {
	a := rec("/vendor/lib64/liba.so", "libb.so")
	b := rec("/vendor/lib64/libb.so", "libc.so")
	c := rec("/vendor/lib64/libc.so", "liba.so")
	graph := namespaceOf(a, b, c)

	got := depcheck.TransitiveClosure([]*depcheck.Record{b}, graph)
	require.Len(t, got, 3)
}

func TestTransitiveClosure_Idempotent(t *testing.T) {
	a := rec("/vendor/lib64/liba.so", "libb.so")
	b := rec("/vendor/lib64/libb.so")
	graph := namespaceOf(a, b)

	first := depcheck.TransitiveClosure([]*depcheck.Record{a}, graph)
	second := depcheck.TransitiveClosure(first.Sorted(), graph)
	require.Equal(t, first.Paths(), second.Paths())
}

func TestTransitiveClosure_RootOutsideGraph(t *testing.T) {
	root := rec("/vendor/lib64/vndk-sp/libext.so", "liba.so", "libext.so")
	a := rec("/vendor/lib64/liba.so")

	got := depcheck.TransitiveClosure([]*depcheck.Record{root}, namespaceOf(a))
	require.Equal(t, []string{"/vendor/lib64/liba.so", "/vendor/lib64/vndk-sp/libext.so"}, got.Paths())
}

func TestTransitiveClosure_NoEdges(t *testing.T) {
	a := rec("/vendor/lib64/liba.so")
	got := depcheck.TransitiveClosure([]*depcheck.Record{a}, depcheck.Namespace{})
	require.Equal(t, []string{"/vendor/lib64/liba.so"}, got.Paths())

	require.Empty(t, depcheck.TransitiveClosure(nil, namespaceOf(a)))
}

func TestFormatPaths(t *testing.T) {
	paths := []string{"/odm/{LIB}/hw", "/vendor/{LIB}"}
	require.Equal(t, []string{"/odm/lib/hw", "/vendor/lib"}, depcheck.FormatPaths(paths, 32))
	require.Equal(t, []string{"/odm/lib64/hw", "/vendor/lib64"}, depcheck.FormatPaths(paths, 64))
}

func TestResolveSPHALNamespace_Precedence(t *testing.T) {
	linkPaths := depcheck.DefaultLayout().SPHALLinkPaths
	odm := rec("/odm/lib64/libhw.so", "libodm.so")
	vendorEgl := rec("/vendor/lib64/egl/libhw.so", "libegl.so")
	system := rec("/system/lib64/libsys.so")
	lib32 := rec("/vendor/lib/libhw.so")

	for _, order := range [][]*depcheck.Record{
		{odm, vendorEgl, system, lib32},
		{vendorEgl, lib32, system, odm},
	} {
		ns := depcheck.ResolveSPHALNamespace(order, 64, linkPaths)
		require.Equal(t, []string{"libhw.so"}, ns.Names())
		require.Same(t, odm, ns["libhw.so"])
	}

	ns := depcheck.ResolveSPHALNamespace([]*depcheck.Record{odm, vendorEgl, lib32}, 32, linkPaths)
	require.Same(t, lib32, ns["libhw.so"])
}

func TestNamespace_Shadowed(t *testing.T) {
	linkPaths := depcheck.DefaultLayout().SPHALLinkPaths
	odm := rec("/odm/lib64/libhw.so")
	vendorEgl := rec("/vendor/lib64/egl/libhw.so")
	ext := rec("/vendor/lib64/vndk-sp/libhw.so")
	records := []*depcheck.Record{vendorEgl, odm, ext}
	ns := depcheck.ResolveSPHALNamespace(records, 64, linkPaths)

	keep := depcheck.RecordSet{}
	require.Empty(t, ns.Shadowed(records, 64, linkPaths, keep))

	keep.Add(odm)
	got := ns.Shadowed(records, 64, linkPaths, keep)
	require.Equal(t, []string{"/vendor/lib64/egl/libhw.so"}, got.Paths())
}

func TestResolveVendorNamespace_Membership(t *testing.T) {
	linkPaths := depcheck.DefaultLayout().VendorLinkPaths
	records := []*depcheck.Record{
		rec("/vendor/lib64/liba.so"),
		rec("/vendor/lib64/hw/liba.so"),
		rec("/vendor/lib64/vndk-sp/libext.so"),
		rec("/vendor/bin/hw/service"),
		rec("/odm/lib/libodm.so"),
	}
	got := depcheck.ResolveVendorNamespace(records, 64, linkPaths)
	require.Equal(t, []string{"/vendor/lib64/hw/liba.so", "/vendor/lib64/liba.so"}, got.Paths())
	require.Equal(t, []string{"liba.so"}, got.Names().Names())
}

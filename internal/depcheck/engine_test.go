package depcheck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajranjith/vndk-depcheck/internal/depcheck"
	"github.com/ajranjith/vndk-depcheck/internal/golden"
)

func testLists(t *testing.T) *golden.Lists {
	t.Helper()
	sphal, err := golden.CompilePatterns([]string{
		`/vendor/${LIB}/egl/libEGL_.*\.so`,
		`/vendor/${LIB}/hw/android\.hardware\.graphics\.mapper@\d+\.\d+-impl\.so`,
		`libhw\.so`,
	})
	require.NoError(t, err)
	return &golden.Lists{
		Version: "28",
		LLNDK:   golden.NewNameSet("libc.so", "libm.so", "libdl.so", "liblog.so"),
		VNDK:    golden.NewNameSet("libvndk.so", "libbase.so"),
		VNDKSP:  golden.NewNameSet("libvndksp.so", "libcutils.so"),
		SPHAL:   sphal,
	}
}

func newEngine(t *testing.T) *depcheck.Engine {
	return &depcheck.Engine{Golden: testLists(t), Layout: depcheck.DefaultLayout()}
}

func storeOf(records ...*depcheck.Record) *depcheck.Store {
	s := depcheck.NewStore()
	for _, r := range records {
		s.Add(r)
	}
	return s
}

func always(v bool) func() bool { return func() bool { return v } }

func TestEngine_VendorLibraryUsingLLNDK(t *testing.T) {
	store := storeOf(rec("/vendor/lib64/libfoo.so", "libc.so"))

	res := newEngine(t).Run(store, []int{32, 64}, always(true), nil)
	require.True(t, res.OK())
	require.Empty(t, res.Violations())
	require.Len(t, res.Passes, 2)
	require.Equal(t, []string{"/vendor/lib64/libfoo.so"}, res.Passes[1].VendorLibs)
}

func TestEngine_VendorLibraryUsingSystemLibrary(t *testing.T) {
	store := storeOf(rec("/vendor/lib64/libbar.so", "libc.so", "libbaz.so"))

	res := newEngine(t).Run(store, []int{64}, always(true), nil)
	require.Equal(t, []depcheck.Violation{{
		TargetPath: "/vendor/lib64/libbar.so",
		Bitness:    64,
		Scope:      depcheck.ScopeVendor,
		Disallowed: []string{"libbaz.so"},
	}}, res.Violations())
	require.Equal(t, 1, res.ErrorCount())
}

func TestEngine_SPHALUsingVNDKIsAlwaysFatal(t *testing.T) {
	store := storeOf(
		rec("/vendor/lib64/egl/libEGL_foo.so", "libc.so", "libvndk.so"),
		rec("/vendor/lib64/libbar.so", "libbaz.so"),
	)

	for _, enforced := range []bool{true, false} {
		res := newEngine(t).Run(store, []int{64}, always(enforced), nil)
		var sphal []depcheck.Violation
		for _, v := range res.Violations() {
			if v.Scope == depcheck.ScopeSPHAL {
				sphal = append(sphal, v)
			}
		}
		require.Equal(t, []depcheck.Violation{{
			TargetPath: "/vendor/lib64/egl/libEGL_foo.so",
			Bitness:    64,
			Scope:      depcheck.ScopeSPHAL,
			Disallowed: []string{"libvndk.so"},
		}}, sphal, "enforced=%v", enforced)
	}
}

func TestEngine_EnforcementDowngrade(t *testing.T) {
	store := storeOf(
		rec("/vendor/lib64/egl/libEGL_foo.so", "libbaz.so"),
		rec("/vendor/lib64/libbar.so", "libbaz.so"),
	)

	res := newEngine(t).Run(store, []int{64}, always(false), nil)
	require.False(t, res.Enforced)
	require.Equal(t, 1, res.ErrorCount())
	require.Equal(t, "/vendor/lib64/egl/libEGL_foo.so", res.Violations()[0].TargetPath)

	waived := res.Waived()
	require.Len(t, waived, 1)
	require.Equal(t, "/vendor/lib64/libbar.so", waived[0].TargetPath)
	require.Equal(t, depcheck.ScopeVendor, waived[0].Scope)

	res = newEngine(t).Run(store, []int{64}, always(true), nil)
	require.Equal(t, 2, res.ErrorCount())
	require.Empty(t, res.Waived())
}

func TestEngine_ShadowedCopyIsNeverChecked(t *testing.T) {
	hw := rec("/vendor/lib64/hw/libhw.so", "libvndksp.so")
	shadowed := rec("/vendor/lib64/libhw.so", "libforbidden.so")
	store := storeOf(shadowed, hw)

	res := newEngine(t).Run(store, []int{64}, always(true), nil)
	pass := res.Passes[0]
	require.Equal(t, []string{"/vendor/lib64/hw/libhw.so"}, pass.SPHALLibs)
	require.Empty(t, res.Violations())
	require.Empty(t, res.Waived())
	require.True(t, res.OK())
}

func TestEngine_ShadowedCopyOfPlainLibraryIsChecked(t *testing.T) {
	winner := rec("/vendor/lib64/hw/libplain.so", "libc.so")
	copied := rec("/vendor/lib64/libplain.so", "libforbidden.so")

	res := newEngine(t).Run(storeOf(copied, winner), []int{64}, always(true), nil)
	require.Empty(t, res.Passes[0].SPHALLibs)
	vs := res.Violations()
	require.Len(t, vs, 1)
	require.Equal(t, "/vendor/lib64/libplain.so", vs[0].TargetPath)
	require.Equal(t, []string{"libforbidden.so"}, vs[0].Disallowed)
}

func TestEngine_SPHALClosureFollowsVendorDeps(t *testing.T) {
	store := storeOf(
		rec("/vendor/lib64/egl/libEGL_foo.so", "libc.so", "libgpu.so"),
		rec("/vendor/lib64/libgpu.so", "libcutils.so", "libbase.so"),
	)

	res := newEngine(t).Run(store, []int{64}, always(false), nil)
	pass := res.Passes[0]
	require.Equal(t, []string{"/vendor/lib64/egl/libEGL_foo.so", "/vendor/lib64/libgpu.so"}, pass.SPHALLibs)
	require.Equal(t, []depcheck.Violation{{
		TargetPath: "/vendor/lib64/libgpu.so",
		Bitness:    64,
		Scope:      depcheck.ScopeSPHAL,
		Disallowed: []string{"libbase.so"},
	}}, pass.Fatal)
	// SP-HAL members are not checked a second time as vendor objects.
	require.Empty(t, pass.Deferrable)
}

func TestEngine_VndkSpExtForbidsVNDK(t *testing.T) {
	store := storeOf(
		rec("/vendor/lib64/vndk-sp/libcutils.so", "libc.so", "libvndk.so", "libext_helper.so"),
		rec("/vendor/lib64/libext_helper.so", "libbase.so"),
		rec("/vendor/lib64/libplain.so", "libbase.so"),
	)

	res := newEngine(t).Run(store, []int{64}, always(true), nil)
	pass := res.Passes[0]
	require.Equal(t, []string{"/vendor/lib64/libext_helper.so", "/vendor/lib64/vndk-sp/libcutils.so"}, pass.VndkSpExt)
	require.Equal(t, []depcheck.Violation{
		{TargetPath: "/vendor/lib64/vndk-sp/libcutils.so", Bitness: 64, Scope: depcheck.ScopeVndkSpExt, Disallowed: []string{"libvndk.so"}},
		{TargetPath: "/vendor/lib64/libext_helper.so", Bitness: 64, Scope: depcheck.ScopeVndkSpExt, Disallowed: []string{"libbase.so"}},
	}, pass.Violations())
}

func TestEngine_AppDirectoryColocation(t *testing.T) {
	store := storeOf(
		depcheck.NewRecord("/vendor/app/Camera/lib/arm64/libjni.so", 64, []string{"libc.so", "libcamhelper.so"}),
		depcheck.NewRecord("/vendor/app/Camera/lib/arm64/libcamhelper.so", 64, []string{"libc.so"}),
		depcheck.NewRecord("/vendor/app/Other/lib/arm64/libother.so", 64, []string{"libcamhelper.so"}),
	)

	res := newEngine(t).Run(store, []int{64}, always(true), nil)
	require.Equal(t, []depcheck.Violation{{
		TargetPath: "/vendor/app/Other/lib/arm64/libother.so",
		Bitness:    64,
		Scope:      depcheck.ScopeVendor,
		Disallowed: []string{"libcamhelper.so"},
	}}, res.Violations())
}

func TestEngine_PassesAreIndependent(t *testing.T) {
	store := storeOf(
		rec("/vendor/lib/libfoo.so", "libbar.so"),
		rec("/vendor/lib64/libbar.so"),
		rec("/vendor/lib64/libfoo.so", "libbar.so"),
	)

	calls := 0
	res := newEngine(t).Run(store, []int{32, 64}, func() bool { calls++; return true }, nil)
	require.Equal(t, 1, calls)
	require.Equal(t, []depcheck.Violation{{
		TargetPath: "/vendor/lib/libfoo.so",
		Bitness:    32,
		Scope:      depcheck.ScopeVendor,
		Disallowed: []string{"libbar.so"},
	}}, res.Violations())
}

func TestResult_ReadErrorsCount(t *testing.T) {
	readErrors := []depcheck.ReadError{{TargetPath: "/vendor/lib/libbad.so", Message: "truncated"}}
	res := newEngine(t).Run(depcheck.NewStore(), depcheck.Bitnesses(false), always(false), readErrors)
	require.Len(t, res.Passes, 1)
	require.Equal(t, 1, res.ErrorCount())
	require.False(t, res.OK())
}

func TestBitnesses(t *testing.T) {
	require.Equal(t, []int{32}, depcheck.Bitnesses(false))
	require.Equal(t, []int{32, 64}, depcheck.Bitnesses(true))
}

func TestCheck_PreservesDeclarationOrder(t *testing.T) {
	r := rec("/vendor/lib64/libx.so", "libz.so", "libc.so", "liba.so", "libz.so")
	got := depcheck.Check(depcheck.ScopeVendor, []*depcheck.Record{r}, func(dep string, _ *depcheck.Record) bool {
		return dep == "libc.so"
	})
	require.Equal(t, []string{"libz.so", "liba.so", "libz.so"}, got[0].Disallowed)
	require.Equal(t, "/vendor/lib64/libx.so: libz.so, liba.so, libz.so", got[0].String())

	require.Empty(t, depcheck.Check(depcheck.ScopeVendor, []*depcheck.Record{rec("/vendor/lib64/liby.so")}, nil))
}

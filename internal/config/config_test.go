package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	cfg, path, warnings, err := Resolve(Flags{})
	require.NoError(t, err)
	require.Empty(t, path)
	require.Empty(t, warnings)
	require.Equal(t, "golden", cfg.Paths.DataDir)
	require.Len(t, cfg.LinkPaths.SPHAL, 6)
	require.Equal(t, "/odm/{LIB}/egl", cfg.LinkPaths.SPHAL[0])
	require.Equal(t, "/odm/{LIB}/hw", cfg.LinkPaths.Vendor[0])
}

func TestResolve_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vndkdep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  mirrorRoot: /tmp/mirror
device:
  abis: [arm64-v8a, armeabi-v7a]
  is64Bit: true
  enforced: false
logging:
  level: debug
`), 0o644))

	cfg, got, warnings, err := Resolve(Flags{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, path, got)
	require.Len(t, warnings, 1)
	require.Equal(t, "/tmp/mirror", cfg.Paths.MirrorRoot)
	require.Equal(t, []string{"arm64-v8a", "armeabi-v7a"}, cfg.Device.ABIs)
	require.NotNil(t, cfg.Device.Is64Bit)
	require.True(t, *cfg.Device.Is64Bit)
	require.False(t, *cfg.Device.Enforced)
	require.Equal(t, "golden", cfg.Paths.DataDir)
	require.Equal(t, Default().LinkPaths, cfg.LinkPaths)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestResolve_JSONOverrideAndFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vndkdep.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"paths":{"dataDir":"data"},"linkPaths":{"vendor":["/vendor/{LIB}"]}}`), 0o644))

	cfg, _, _, err := Resolve(Flags{ConfigPath: path, MirrorRoot: "/mnt/dev"})
	require.NoError(t, err)
	require.Equal(t, "data", cfg.Paths.DataDir)
	require.Equal(t, "/mnt/dev", cfg.Paths.MirrorRoot)
	require.Equal(t, []string{"/vendor/{LIB}"}, cfg.LinkPaths.Vendor)
	require.Equal(t, Default().LinkPaths.SPHAL, cfg.LinkPaths.SPHAL)
}

func TestResolve_TOMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vndkdep.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[paths]
mirrorRoot = "/srv/mirror"

[device]
vndkVersion = "28"
enforced = true

[reports.sarif]
enabled = false
path = "out/results.sarif"
`), 0o644))

	cfg, _, warnings, err := Resolve(Flags{ConfigPath: path})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "/srv/mirror", cfg.Paths.MirrorRoot)
	require.Equal(t, "28", cfg.Device.VndkVersion)
	require.True(t, *cfg.Device.Enforced)
	require.False(t, cfg.Reports.SARIF.IsEnabled())
	require.True(t, cfg.Reports.JUnit.IsEnabled())
	require.Equal(t, "out/results.sarif", cfg.Reports.SARIF.Path)
	require.Equal(t, Default().LinkPaths, cfg.LinkPaths)
}

func TestResolve_ReportsFollowOutputDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vndkdep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  outputDir: build/vndk
reports:
  junit:
    enabled: false
`), 0o644))

	cfg, _, _, err := Resolve(Flags{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, filepath.Join("build/vndk", "report.json"), cfg.Reports.JSON.Path)
	require.Equal(t, filepath.Join("build/vndk", "results.sarif"), cfg.Reports.SARIF.Path)
	require.Equal(t, filepath.Join("build/vndk", "junit.xml"), cfg.Reports.JUnit.Path)
	require.Equal(t, filepath.Join("build/vndk", "keys", "signing_ed25519"), cfg.Paths.SigningKey)
	require.True(t, cfg.Reports.JSON.IsEnabled())
	require.False(t, cfg.Reports.JUnit.IsEnabled())
}

func TestResolve_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"schema.json":   `{"schemaVersion":"2.0"}`,
		"relative.json": `{"linkPaths":{"spHal":["vendor/lib"]}}`,
		"level.json":    `{"logging":{"level":"loud"}}`,
		"broken.json":   `{`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, _, _, err := Resolve(Flags{ConfigPath: path})
		require.Error(t, err, name)
	}

	_, _, _, err := Resolve(Flags{ConfigPath: filepath.Join(dir, "missing.json")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestHostPath(t *testing.T) {
	cfg := Default()
	cfg.Paths.MirrorRoot = "/mnt/dev"
	require.Equal(t, filepath.Join("/mnt/dev", "vendor", "build.prop"), cfg.HostPath("/vendor/build.prop"))
}

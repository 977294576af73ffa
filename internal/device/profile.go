package device

import "strings"

// APILevelP is the first platform release with VNDK run-time enforcement.
const APILevelP = 28

// Profile is what the checker needs to know about the device.
type Profile struct {
	ABIs          []string
	Is64Bit       bool
	VndkVersion   string
	FirstAPILevel int
	VndkLite      bool
}

// ProfileFromProps derives a profile from system properties.
func ProfileFromProps(p Props) Profile {
	prof := Profile{
		ABIs:          splitList(p.First("ro.product.cpu.abilist", "ro.vendor.product.cpu.abilist")),
		Is64Bit:       p.First("ro.product.cpu.abilist64", "ro.vendor.product.cpu.abilist64") != "",
		VndkVersion:   p.First("ro.vndk.version"),
		FirstAPILevel: p.Int("ro.product.first_api_level", "ro.build.version.sdk", "ro.vendor.build.version.sdk"),
		VndkLite:      p["ro.vndk.lite"] == "true",
	}
	if prof.VndkVersion == "" && prof.FirstAPILevel > 0 {
		prof.VndkVersion = p.First("ro.build.version.sdk", "ro.vendor.build.version.sdk")
	}
	return prof
}

// RuntimeEnforced reports whether the linker enforces VNDK namespaces on
// this device. VNDK-lite devices and devices launched before P do not.
func (p Profile) RuntimeEnforced() bool {
	return !p.VndkLite && p.FirstAPILevel >= APILevelP
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

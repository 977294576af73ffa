//go:build unix

package device

import "golang.org/x/sys/unix"

// IsExecutable reports whether any execute bit is set on the local copy.
// adb pull preserves the mode bits of the device file.
func IsExecutable(hostPath string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(hostPath, &st); err != nil {
		return false, err
	}
	return st.Mode&0o111 != 0, nil
}

//go:build !unix

package device

import "os"

// IsExecutable reports whether any execute bit is set on the local copy.
func IsExecutable(hostPath string) (bool, error) {
	fi, err := os.Stat(hostPath)
	if err != nil {
		return false, err
	}
	return fi.Mode().Perm()&0o111 != 0, nil
}

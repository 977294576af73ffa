// Package device models the parts of the device under test the checker
// consumes: the mirrored partition tree, file permissions and the system
// properties describing ABIs, VNDK version and enforcement.
package device

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// Entry pairs a path on the device with the local copy of the file.
type Entry struct {
	TargetPath string
	HostPath   string
}

// Walk enumerates every regular file below hostRoot. Device paths are
// formed by joining targetRoot with the slash-separated relative path.
// Unreadable directories are skipped and returned to onError when it is
// non-nil.
func Walk(hostRoot, targetRoot string, onError func(hostPath string, err error)) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(hostRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == hostRoot {
				return err
			}
			if onError != nil {
				onError(p, err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(hostRoot, p)
		if err != nil {
			return err
		}
		out = append(out, Entry{
			TargetPath: JoinTargetPath(targetRoot, filepath.ToSlash(rel)),
			HostPath:   p,
		})
		return nil
	})
	return out, err
}

// JoinTargetPath joins device path segments with forward slashes and keeps
// the result absolute.
func JoinTargetPath(root string, elems ...string) string {
	p := path.Join(append([]string{root}, elems...)...)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

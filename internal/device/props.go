package device

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ajranjith/vndk-depcheck/internal/support"
)

// Props holds parsed system properties.
type Props map[string]string

// ParseProps reads build.prop syntax: key=value lines, '#' comments and
// import statements ignored.
func ParseProps(r io.Reader, into Props) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "import ") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		// ro.* properties cannot be redefined once set.
		if _, seen := into[key]; seen {
			continue
		}
		into[key] = strings.TrimSpace(val)
	}
	return sc.Err()
}

// LoadProps parses the given files in order; missing files are skipped.
func LoadProps(paths ...string) (Props, error) {
	props := Props{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := ParseProps(bytes.NewReader(support.StripBOM(data)), props); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
	}
	return props, nil
}

// First returns the value of the first non-empty key.
func (p Props) First(keys ...string) string {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return v
		}
	}
	return ""
}

// Int returns the first key that parses as an integer, or 0.
func (p Props) Int(keys ...string) int {
	for _, k := range keys {
		if n, err := strconv.Atoi(p[k]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

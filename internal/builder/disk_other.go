//go:build !unix

package builder

import "errors"

func freeDiskBytes(path string) (uint64, error) {
	return 0, errors.New("free space query not supported on this platform")
}

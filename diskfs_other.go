//go:build !linux

package diskfs

import (
	"errors"
	"os"
)

var errBlockDevice = errors.New("block devices are only supported on linux")

func getBlockDeviceSize(f *os.File) (int64, error) {
	return 0, errBlockDevice
}

func getSectorSizes(f *os.File) (int64, int64, error) {
	return 0, 0, errBlockDevice
}

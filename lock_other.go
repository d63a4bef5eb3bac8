//go:build !unix

package diskfs

import "os"

// images are not locked on platforms without flock
func lockFile(f *os.File, exclusive bool) error { return nil }

func unlockFile(f *os.File) error { return nil }

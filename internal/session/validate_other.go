//go:build !unix

package session

import "os"

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".screenrec-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

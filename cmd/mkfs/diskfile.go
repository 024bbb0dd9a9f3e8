package main

import (
	"os"

	"kernix/blkcache"
	"kernix/errs"
)

// fileDisk backs a blkcache.Disk with a plain host file, sized to
// totalBlocks*blkcache.BlockSize bytes up front so every block offset is
// valid from the first write.
type fileDisk struct {
	f *os.File
}

func createFileDisk(path string, totalBlocks int) (*fileDisk, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalBlocks) * blkcache.BlockSize); err != nil {
		f.Close()
		return nil, err
	}
	return &fileDisk{f: f}, nil
}

func (d *fileDisk) ReadBlock(block int, buf *[blkcache.BlockSize]byte) errs.Err_t {
	if _, err := d.f.ReadAt(buf[:], int64(block)*blkcache.BlockSize); err != nil {
		return errs.NoDisk
	}
	return errs.OK
}

func (d *fileDisk) WriteBlock(block int, buf *[blkcache.BlockSize]byte) errs.Err_t {
	if _, err := d.f.WriteAt(buf[:], int64(block)*blkcache.BlockSize); err != nil {
		return errs.NoDisk
	}
	return errs.OK
}

func (d *fileDisk) Close() error { return d.f.Close() }

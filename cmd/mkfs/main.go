// Command mkfs builds a file system image: it formats a fresh volume
// and, optionally, copies a host directory tree into it as the initial
// root contents.
//
// Grounded on the teacher's biscuit/src/mkfs/mkfs.go (WalkDir over a
// skeleton directory, creating each entry as a directory or file and
// appending its data), adapted from ufs.Ufs_t/MkDisk onto this repo's
// own fs.FileSystem/blkcache.Cache, and from flag.Args-style argument
// handling onto github.com/spf13/cobra + pflag the way every other
// command in this tree takes its flags.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kernix/blkcache"
	"kernix/errs"
	"kernix/fs"
)

var (
	flagBlocks int
	flagInodes int
	flagSkel   string
)

func main() {
	root := &cobra.Command{
		Use:   "mkfs <image>",
		Short: "Format a kernix file system image",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	root.Flags().IntVar(&flagBlocks, "blocks", 4096, "total blocks in the image")
	root.Flags().IntVar(&flagInodes, "inodes", 1024, "inode count the image can hold")
	root.Flags().StringVar(&flagSkel, "skel", "", "host directory tree to copy in as the initial root contents")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("mkfs failed")
	}
}

func run(cmd *cobra.Command, args []string) error {
	image := args[0]
	log := logrus.WithFields(logrus.Fields{"image": image, "blocks": flagBlocks, "inodes": flagInodes})

	disk, err := createFileDisk(image, flagBlocks)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer disk.Close()

	cache := blkcache.New(flagBlocks)
	cache.Attach(0, disk)

	fsys, e := fs.Format(cache, 0, flagBlocks, flagInodes, uuid.New())
	if e.IsErr() {
		return fmt.Errorf("format: %v", e)
	}
	log.Info("formatted volume")

	if flagSkel != "" {
		if err := addTree(fsys, flagSkel); err != nil {
			return fmt.Errorf("copy skeleton tree: %w", err)
		}
	}

	if e := cache.FlushAll(); e.IsErr() {
		return fmt.Errorf("flush: %v", e)
	}
	log.Info("image written")
	return nil
}

// addTree walks skelDir on the host and replicates it into fsys,
// mirroring directories and file contents relative to the root.
func addTree(fsys *fs.FileSystem, skelDir string) error {
	return filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, skelDir), string(filepath.Separator))
		if rel == "" {
			return nil
		}

		parentNum, e := resolveParent(fsys, rel)
		if e.IsErr() {
			return fmt.Errorf("resolve parent of %q: %v", rel, e)
		}
		name := filepath.Base(rel)

		if d.IsDir() {
			if _, e := fsys.Mkdir(parentNum, name); e.IsErr() {
				return fmt.Errorf("mkdir %q: %v", rel, e)
			}
			return nil
		}

		num, e := fsys.Create(parentNum, name, fs.KindFile)
		if e.IsErr() {
			return fmt.Errorf("create %q: %v", rel, e)
		}
		return copyFileInto(fsys, num, path)
	})
}

func resolveParent(fsys *fs.FileSystem, rel string) (int, errs.Err_t) {
	dir := filepath.Dir(rel)
	if dir == "." {
		dir = ""
	}
	return fsys.Lookup(dir)
}

func copyFileInto(fsys *fs.FileSystem, num int, hostPath string) error {
	src, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer src.Close()

	buf := make([]byte, blkcache.BlockSize)
	var offset int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, e := fsys.WriteFile(num, offset, buf[:n]); e.IsErr() {
				return fmt.Errorf("write: %v", e)
			}
			offset += int64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

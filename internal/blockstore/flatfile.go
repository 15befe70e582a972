package blockstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// magic prefixes every record so a reader can tell a truncated/corrupt
// file from a genuine record boundary.
var magic = [4]byte{'S', 'H', 'U', 'R'}

// defaultMaxFileSize is the rotation threshold for a single blk/rev file,
// matching the classic 128 MiB Bitcoin-style block file size.
const defaultMaxFileSize = 128 << 20

// Ref locates a single record inside a flat-file set.
type Ref struct {
	FileNum uint32
	Offset  uint32
	Size    uint32
}

// fileSet manages an append-only, numbered sequence of flat files sharing a
// filename prefix (blk/rev), each holding magic-prefixed length-delimited
// records. Writes always go to the current (highest-numbered) file; reads
// can address any file by number.
type fileSet struct {
	dir         string
	prefix      string
	maxFileSize uint32

	curNum  uint32
	curFile *os.File
	curSize uint32
}

func openFileSet(dir, prefix string, maxFileSize uint32) (*fileSet, error) {
	if maxFileSize == 0 {
		maxFileSize = defaultMaxFileSize
	}
	fs := &fileSet{dir: dir, prefix: prefix, maxFileSize: maxFileSize}
	if err := fs.openLatest(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *fileSet) fileName(num uint32) string {
	return filepath.Join(fs.dir, fmt.Sprintf("%s%05d.dat", fs.prefix, num))
}

// openLatest finds the highest-numbered existing file (or creates 00000 if
// none exists) and opens it for appending.
func (fs *fileSet) openLatest() error {
	num := uint32(0)
	for {
		if _, err := os.Stat(fs.fileName(num + 1)); err != nil {
			break
		}
		num++
	}
	return fs.openForAppend(num)
}

func (fs *fileSet) openForAppend(num uint32) error {
	f, err := os.OpenFile(fs.fileName(num), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("blockstore: open %s: %w", fs.fileName(num), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("blockstore: stat %s: %w", fs.fileName(num), err)
	}
	if fs.curFile != nil {
		fs.curFile.Close()
	}
	fs.curFile = f
	fs.curNum = num
	fs.curSize = uint32(info.Size())
	return nil
}

// Append writes payload as one magic-prefixed record and returns where it
// landed. It rotates to a new file first if payload would push the current
// file past maxFileSize.
func (fs *fileSet) Append(payload []byte) (Ref, error) {
	recordSize := uint32(4 + 4 + len(payload))
	if fs.curSize > 0 && fs.curSize+recordSize > fs.maxFileSize {
		if err := fs.openForAppend(fs.curNum + 1); err != nil {
			return Ref{}, err
		}
	}

	offset := fs.curSize
	var header [8]byte
	copy(header[:4], magic[:])
	binary.LittleEndian.PutUint32(header[4:], uint32(len(payload)))

	if _, err := fs.curFile.WriteAt(header[:], int64(offset)); err != nil {
		return Ref{}, fmt.Errorf("blockstore: write header: %w", err)
	}
	if _, err := fs.curFile.WriteAt(payload, int64(offset)+8); err != nil {
		return Ref{}, fmt.Errorf("blockstore: write payload: %w", err)
	}
	if err := fs.curFile.Sync(); err != nil {
		return Ref{}, fmt.Errorf("blockstore: sync: %w", err)
	}
	fs.curSize += recordSize

	return Ref{FileNum: fs.curNum, Offset: offset, Size: uint32(len(payload))}, nil
}

// Read returns the payload recorded at ref, validating the magic prefix and
// stored length.
func (fs *fileSet) Read(ref Ref) ([]byte, error) {
	var f *os.File
	if ref.FileNum == fs.curNum {
		f = fs.curFile
	} else {
		var err error
		f, err = os.Open(fs.fileName(ref.FileNum))
		if err != nil {
			return nil, fmt.Errorf("blockstore: open %s: %w", fs.fileName(ref.FileNum), err)
		}
		defer f.Close()
	}

	header := make([]byte, 8)
	if _, err := f.ReadAt(header, int64(ref.Offset)); err != nil {
		return nil, fmt.Errorf("blockstore: read header: %w", err)
	}
	if [4]byte(header[:4]) != magic {
		return nil, fmt.Errorf("blockstore: bad magic at %s offset %d", fs.fileName(ref.FileNum), ref.Offset)
	}
	size := binary.LittleEndian.Uint32(header[4:])
	if size != ref.Size {
		return nil, fmt.Errorf("blockstore: record size mismatch: index says %d, file says %d", ref.Size, size)
	}

	payload := make([]byte, size)
	if _, err := f.ReadAt(payload, int64(ref.Offset)+8); err != nil {
		return nil, fmt.Errorf("blockstore: read payload: %w", err)
	}
	return payload, nil
}

func (fs *fileSet) Close() error {
	if fs.curFile == nil {
		return nil
	}
	return fs.curFile.Close()
}

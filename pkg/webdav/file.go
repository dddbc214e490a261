package webdav

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/reeldav/reeldav/pkg/upstream"
)

// File is a read-only webdav.File. Regular files stream from the upstream
// store: the HTTP body is opened lazily on the first Read and reopened at the
// new offset after a position-changing Seek. Synthetic files carry their
// bytes in content.
type File struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time

	children []os.FileInfo

	client *upstream.Client
	ctx    context.Context
	url    string
	href   string

	content []byte

	offset      int64
	reader      io.ReadCloser
	seekPending bool
}

func (f *File) Close() error {
	if f.reader != nil {
		f.reader.Close()
		f.reader = nil
	}
	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if f.isDir {
		return 0, os.ErrInvalid
	}

	if f.content != nil {
		if f.offset >= int64(len(f.content)) {
			return 0, io.EOF
		}
		n = copy(p, f.content[f.offset:])
		f.offset += int64(n)
		return n, nil
	}

	if f.offset >= f.size {
		return 0, io.EOF
	}

	if f.reader == nil || f.seekPending {
		if f.reader != nil {
			f.reader.Close()
			f.reader = nil
		}
		body, err := f.client.OpenRange(f.ctx, f.url, f.offset, -1)
		if err != nil {
			return 0, err
		}
		f.reader = body
		f.seekPending = false
	}

	n, err = f.reader.Read(p)
	f.offset += int64(n)

	if err != nil {
		f.reader.Close()
		f.reader = nil
	}
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.isDir {
		return 0, os.ErrInvalid
	}

	newOffset := f.offset
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset += offset
	case io.SeekEnd:
		newOffset = f.size + offset
	default:
		return 0, os.ErrInvalid
	}

	if newOffset < 0 {
		newOffset = 0
	}
	if newOffset > f.size {
		newOffset = f.size
	}

	// Only reopen the stream if the position actually changed.
	if newOffset != f.offset {
		f.offset = newOffset
		f.seekPending = true
	}
	return f.offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, os.ErrPermission
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.isDir {
		return &FileInfo{
			name:    f.name,
			size:    0,
			mode:    0755 | os.ModeDir,
			modTime: f.modTime,
			isDir:   true,
		}, nil
	}
	return &FileInfo{
		name:    f.name,
		size:    f.size,
		mode:    0644,
		modTime: f.modTime,
		isDir:   false,
	}, nil
}

func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDir {
		return nil, os.ErrInvalid
	}

	if count <= 0 {
		return f.children, nil
	}

	if len(f.children) == 0 {
		return nil, io.EOF
	}

	if count > len(f.children) {
		count = len(f.children)
	}

	files := f.children[:count]
	f.children = f.children[count:]
	return files, nil
}

package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrEmpty is returned when a stream produced zero bytes.
	ErrEmpty = errors.New("empty content")
	// ErrTooLarge is returned when a stream exceeds its byte limit.
	ErrTooLarge = errors.New("content exceeds size limit")
)

// PartialPath returns the sibling path used while dst is being written.
func PartialPath(dst string) string {
	return dst + ".part"
}

// WriteStream copies r into dst through a ".part" sibling, renaming it into
// place only after the whole stream was read. maxBytes <= 0 disables the limit.
func WriteStream(dst string, r io.Reader, maxBytes int64) (int64, error) {
	tmp := PartialPath(dst)
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	written, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
	case written == 0:
		err = ErrEmpty
	case maxBytes > 0 && written > maxBytes:
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return written, nil
}

// CopyFile copies src to dst with the same partial-then-rename guarantee as WriteStream.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return WriteStream(dst, in, 0)
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}

// Publish moves src to dst without ever replacing an existing dst. A hard link
// claims the name atomically; across filesystems the bytes are copied to a
// partial file first and linked from there. It fails with os.ErrExist when dst
// is taken.
func Publish(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		_ = os.Remove(src)
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("publish %s: %w", dst, err)
	}

	tmp := PartialPath(dst)
	_ = os.Remove(tmp)
	if err := CopyFileVerified(src, tmp); err != nil {
		return fmt.Errorf("publish %s: copy: %w", dst, err)
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, dst); err != nil {
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	_ = os.Remove(src)
	return nil
}

package compare

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/assurance/pkg/storage"
)

// MD5Digester streams files through MD5 in fixed-size chunks.
// MD5 catches accidental divergence; it is not a defence against deliberate collisions.
type MD5Digester struct {
	fs         storage.Filesystem
	bufferPool *sync.Pool
}

// NewMD5Digester creates a digester reading through fs
func NewMD5Digester(fs storage.Filesystem, bufferSize int) *MD5Digester {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &MD5Digester{
		fs: fs,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// Sum returns the MD5 digest of the file at path
func (d *MD5Digester) Sum(ctx context.Context, path string) ([]byte, error) {
	reader, err := d.fs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	hash := md5.New()
	bufPtr := d.bufferPool.Get().(*[]byte)
	defer d.bufferPool.Put(bufPtr)
	buf := *bufPtr

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hash.Sum(nil), nil
}

// Equal digests both files in parallel and compares the results
func (d *MD5Digester) Equal(ctx context.Context, file1, file2 string) (bool, error) {
	var sum1, sum2 []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum1, err = d.Sum(gctx, file1)
		return err
	})
	g.Go(func() error {
		var err error
		sum2, err = d.Sum(gctx, file2)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("failed to compute digest: %w", err)
	}

	return bytes.Equal(sum1, sum2), nil
}

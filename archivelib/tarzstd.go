package archivelib

import (
	"archive/tar"
	"context"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/filedesk/filecore/corefs"
)

// tarZstdWriter/tarZstdReader give a modern, faster-to-decompress
// alternative to tar.gz, using the same zstd encoder/decoder
// backend/compress/zstd_handler.go already pulls in for its own
// compression backend, rather than adding a second zstd binding.
type tarZstdWriter struct {
	zw *zstd.Encoder
	tw *tar.Writer
}

func newTarZstdWriter(w io.Writer) (*tarZstdWriter, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	return &tarZstdWriter{zw: zw, tw: tar.NewWriter(zw)}, nil
}

func (t *tarZstdWriter) WriteEntry(ctx context.Context, name string, info corefs.Info, r io.Reader) error {
	hdr := tarHeaderFor(name, info)
	if err := t.tw.WriteHeader(hdr); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	if info.IsDir {
		return nil
	}
	_, err := io.Copy(t.tw, r)
	return corefs.Wrap(corefs.KindIO, err)
}

func (t *tarZstdWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	return corefs.Wrap(corefs.KindIO, t.zw.Close())
}

type tarZstdReader struct {
	zr *zstd.Decoder
	tr *tar.Reader
}

func newTarZstdReader(r io.Reader) (*tarZstdReader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindUnsupportedFormat, err)
	}
	return &tarZstdReader{zr: zr, tr: tar.NewReader(zr)}, nil
}

func (t *tarZstdReader) Next() (string, corefs.Info, io.Reader, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		if err == io.EOF {
			return "", corefs.Info{}, nil, io.EOF
		}
		return "", corefs.Info{}, nil, corefs.Wrap(corefs.KindIO, err)
	}
	return hdr.Name, infoFromTarHeader(hdr), t.tr, nil
}

func (t *tarZstdReader) Close() error {
	t.zr.Close()
	return nil
}

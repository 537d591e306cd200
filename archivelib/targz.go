package archivelib

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"

	"github.com/filedesk/filecore/corefs"
)

type tarGzWriter struct {
	gz *gzip.Writer
	tw *tar.Writer
}

func newTarGzWriter(w io.Writer) (*tarGzWriter, error) {
	gz := gzip.NewWriter(w)
	return &tarGzWriter{gz: gz, tw: tar.NewWriter(gz)}, nil
}

func (t *tarGzWriter) WriteEntry(ctx context.Context, name string, info corefs.Info, r io.Reader) error {
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

func (t *tarGzWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	return corefs.Wrap(corefs.KindIO, t.gz.Close())
}

type tarGzReader struct {
	gz *gzip.Reader
	tr *tar.Reader
}

func newTarGzReader(r io.Reader) (*tarGzReader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindUnsupportedFormat, err)
	}
	return &tarGzReader{gz: gz, tr: tar.NewReader(gz)}, nil
}

func (t *tarGzReader) Next() (string, corefs.Info, io.Reader, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		if err == io.EOF {
			return "", corefs.Info{}, nil, io.EOF
		}
		return "", corefs.Info{}, nil, corefs.Wrap(corefs.KindIO, err)
	}
	return hdr.Name, infoFromTarHeader(hdr), t.tr, nil
}

func (t *tarGzReader) Close() error {
	return corefs.Wrap(corefs.KindIO, t.gz.Close())
}

func tarHeaderFor(name string, info corefs.Info) *tar.Header {
	hdr := &tar.Header{
		Name:    name,
		ModTime: modTimeOrNow(info),
		Mode:    int64(info.Mode),
	}
	if info.IsDir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name = name + "/"
	} else {
		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size
	}
	return hdr
}

func infoFromTarHeader(hdr *tar.Header) corefs.Info {
	return corefs.Info{
		DisplayName: hdr.Name,
		IsDir:       hdr.Typeflag == tar.TypeDir,
		Size:        hdr.Size,
		ModTime:     hdr.ModTime,
		Mode:        uint32(hdr.Mode),
	}
}

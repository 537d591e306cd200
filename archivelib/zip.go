package archivelib

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"crypto/rand"
	"hash/crc32"
	"io"
	"time"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/internal/pkzipcrypto"
)

type zipWriter struct {
	zw         *zip.Writer
	passphrase string
}

func newZipWriter(w io.Writer, passphrase string) *zipWriter {
	return &zipWriter{zw: zip.NewWriter(w), passphrase: passphrase}
}

func (z *zipWriter) WriteEntry(ctx context.Context, name string, info corefs.Info, r io.Reader) error {
	if info.IsDir {
		fh := &zip.FileHeader{Name: name + "/", Modified: modTimeOrNow(info)}
		_, err := z.zw.CreateHeader(fh)
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}

	if z.passphrase == "" {
		fh := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTimeOrNow(info)}
		fw, err := z.zw.CreateHeader(fh)
		if err != nil {
			return corefs.Wrap(corefs.KindIO, err)
		}
		_, err = fw.Write(data)
		return corefs.Wrap(corefs.KindIO, err)
	}
	return z.writeEncrypted(name, info, data)
}

// writeEncrypted deflates data itself (rather than letting archive/zip's
// normal CreateHeader path compress it) so the compressed bytes can be run
// through the traditional PKWARE cipher before being written raw via
// CreateRaw, matching APPNOTE.TXT §6.1's encrypted-entry framing: a
// 12-byte encrypted verification header immediately followed by the
// encrypted compressed stream.
func (z *zipWriter) writeEncrypted(name string, info corefs.Info, data []byte) error {
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	if _, err := fw.Write(data); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	if err := fw.Close(); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}

	crc := crc32.ChecksumIEEE(data)
	header := make([]byte, 12)
	if _, err := rand.Read(header); err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	header[11] = byte(crc >> 24)

	keys := pkzipcrypto.NewKeys(z.passphrase)
	encHeader := pkzipcrypto.Encrypt(keys, header)
	encBody := pkzipcrypto.Encrypt(keys, compressed.Bytes())

	full := make([]byte, 0, len(encHeader)+len(encBody))
	full = append(full, encHeader...)
	full = append(full, encBody...)

	fh := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTimeOrNow(info),
		Flags:    0x1,
	}
	fh.CRC32 = crc
	fh.UncompressedSize64 = uint64(len(data))
	fh.CompressedSize64 = uint64(len(full))

	rw, err := z.zw.CreateRaw(fh)
	if err != nil {
		return corefs.Wrap(corefs.KindIO, err)
	}
	_, err = rw.Write(full)
	return corefs.Wrap(corefs.KindIO, err)
}

func (z *zipWriter) Close() error {
	return corefs.Wrap(corefs.KindIO, z.zw.Close())
}

type zipReader struct {
	zr         *zip.Reader
	passphrase string
	index      int
}

// newZipReader buffers the whole archive into memory: archive/zip needs an
// io.ReaderAt plus a known size, which a plain io.Reader can't supply.
// Archives this module extracts are expected to be desktop-sized (single
// digits of GB at most), so this tradeoff favors simplicity over streaming
// very large zips.
func newZipReader(r io.Reader, passphrase string) (*zipReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corefs.Wrap(corefs.KindUnsupportedFormat, err)
	}
	return &zipReader{zr: zr, passphrase: passphrase}, nil
}

func (z *zipReader) Next() (string, corefs.Info, io.Reader, error) {
	if z.index >= len(z.zr.File) {
		return "", corefs.Info{}, nil, io.EOF
	}
	f := z.zr.File[z.index]
	z.index++

	info := corefs.Info{
		DisplayName: f.Name,
		IsDir:       f.FileInfo().IsDir(),
		Size:        int64(f.UncompressedSize64),
		ModTime:     f.Modified,
	}
	if info.IsDir {
		return f.Name, info, bytes.NewReader(nil), nil
	}

	if f.Flags&0x1 == 0 {
		rc, err := f.Open()
		if err != nil {
			return f.Name, info, nil, corefs.Wrap(corefs.KindIO, err)
		}
		return f.Name, info, rc, nil
	}

	plain, err := z.decryptEntry(f)
	if err != nil {
		return f.Name, info, nil, err
	}
	return f.Name, info, bytes.NewReader(plain), nil
}

func (z *zipReader) decryptEntry(f *zip.File) ([]byte, error) {
	if z.passphrase == "" {
		return nil, corefs.New(corefs.KindPermissionDenied, "entry is encrypted, no passphrase supplied")
	}
	rc, err := f.OpenRaw()
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	if len(raw) < 12 {
		return nil, corefs.New(corefs.KindUnsupportedFormat, "encrypted entry shorter than verification header")
	}

	keys := pkzipcrypto.NewKeys(z.passphrase)
	header := pkzipcrypto.Decrypt(keys, raw[:12])
	if header[11] != byte(f.CRC32>>24) {
		return nil, corefs.New(corefs.KindPermissionDenied, "incorrect passphrase")
	}
	body := pkzipcrypto.Decrypt(keys, raw[12:])

	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	plain, err := io.ReadAll(fr)
	if err != nil {
		return nil, corefs.Wrap(corefs.KindIO, err)
	}
	return plain, nil
}

func (z *zipReader) Close() error { return nil }

func modTimeOrNow(info corefs.Info) time.Time {
	if info.ModTime.IsZero() {
		return time.Now()
	}
	return info.ModTime
}

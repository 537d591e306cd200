package nodetasks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/filedesk/filecore/attrcache"
	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
	"github.com/filedesk/filecore/node"
	"github.com/filedesk/filecore/task"
)

// nativeMimeTypes are the bitmap formats this process decodes in-process
// (spec.md §4.E step 2), rather than shelling out to a thumbnailer.
// image/gif and image/jpeg register themselves via their blank imports
// above; PNG is handled directly since it is also the cache's own output
// format.
var nativeMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// ThumbnailSize is the longest edge of a generated thumbnail, matching the
// freedesktop "normal" size class.
const ThumbnailSize = 128

// Thumbnailer invokes an external thumbnailer subprocess for a mime type
// not handled natively (spec.md §4.E step 3). Implementations resolve a
// mime type to a registered thumbnailer command, substitute %i/%o/%s for
// input path/output path/size, and run it.
type Thumbnailer interface {
	// Generate writes a PNG thumbnail for srcPath (whose content type is
	// contentType) to outPath, sized to at most ThumbnailSize on its
	// longest edge. Returns an error (including "no thumbnailer
	// registered for this type") if it cannot.
	Generate(ctx context.Context, srcPath, outPath, contentType string, size int) error
}

// CacheDir returns the user's freedesktop thumbnail cache root
// ($XDG_CACHE_HOME/thumbnails or ~/.cache/thumbnails).
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", corefs.Wrap(corefs.KindIO, err)
	}
	return filepath.Join(base, "thumbnails"), nil
}

func thumbnailKey(loc corefs.Location) string {
	sum := md5.Sum([]byte(loc.String()))
	return hex.EncodeToString(sum[:])
}

func normalPath(cacheDir string, loc corefs.Location) string {
	return filepath.Join(cacheDir, "normal", thumbnailKey(loc)+".png")
}

func failPath(cacheDir, appName string, loc corefs.Location) string {
	return filepath.Join(cacheDir, "fail", appName, thumbnailKey(loc)+".png")
}

// ThumbnailResult is what the Thumbnail slot stores: either a usable path
// or a recorded failure, per spec.md §4.E step 4 ("emit a failed-thumbnail
// marker so future calls do not retry until invalidation").
type ThumbnailResult struct {
	Path   string
	Failed bool
}

// Thumbnail implements spec.md §4.E's get_thumbnail: consult the
// Thumbnail slot (stale-while-pending, same policy as query_info/
// enumerate_children), and on a miss run the four-step ThumbnailTask.
func Thumbnail(parent context.Context, n *node.FileNode, thumbnailer Thumbnailer, appName string, pool *task.Pool, returnTo *task.Loop, continuation func(ThumbnailResult, error)) {
	if v, ok := n.Cache().GetValue(n.ThumbnailSlot(), false); ok && n.Cache().State(n.ThumbnailSlot()) != attrcache.Invalid {
		continuation(v.(ThumbnailResult), nil)
		return
	}

	n.Cache().SetPending(n.ThumbnailSlot())
	loc := n.Location()
	info, haveInfo := n.CachedInfo()

	t := task.NewTask(parent, returnTo, func(ctx context.Context) (interface{}, error) {
		return generateThumbnail(ctx, loc, info, haveInfo, thumbnailer, appName)
	})
	t.OnFinished(func(result interface{}, err error) {
		if err != nil {
			n.Cache().Invalidate(n.ThumbnailSlot(), false)
			continuation(ThumbnailResult{}, err)
			return
		}
		res := result.(ThumbnailResult)
		n.Cache().SetValue(n.ThumbnailSlot(), res)
		continuation(res, nil)
	})
	pool.Submit(t)
}

func generateThumbnail(ctx context.Context, loc corefs.Location, info corefs.Info, haveInfo bool, thumbnailer Thumbnailer, appName string) (ThumbnailResult, error) {
	cacheDir, err := CacheDir()
	if err != nil {
		return ThumbnailResult{}, err
	}
	out := normalPath(cacheDir, loc)
	fail := failPath(cacheDir, appName, loc)

	// Step 1: an existing thumbnail whose mtime is not older than the
	// source file's is trusted as-is.
	if fi, statErr := os.Stat(out); statErr == nil {
		if !haveInfo || !info.ModTime.After(fi.ModTime()) {
			return ThumbnailResult{Path: out}, nil
		}
	}
	if _, statErr := os.Stat(fail); statErr == nil {
		return ThumbnailResult{Failed: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
		return ThumbnailResult{}, corefs.Wrap(corefs.KindIO, err)
	}

	contentType := info.ContentType

	// Step 2: native in-process decode for bitmap formats we ship a
	// decoder for.
	if nativeMimeTypes[contentType] {
		if err := decodeAndResizeNative(loc.Path, out); err == nil {
			return ThumbnailResult{Path: out}, nil
		}
	}

	// Step 3: external thumbnailer subprocess for everything else.
	if thumbnailer != nil {
		if err := thumbnailer.Generate(ctx, loc.Path, out, contentType, ThumbnailSize); err == nil {
			return ThumbnailResult{Path: out}, nil
		}
	}

	// Step 4: all paths exhausted, record a failure marker.
	if err := os.MkdirAll(filepath.Dir(fail), 0o700); err == nil {
		_ = os.WriteFile(fail, nil, 0o600)
	}
	return ThumbnailResult{Failed: true}, nil
}

func decodeAndResizeNative(srcPath, outPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	dst := resizeToFit(src, ThumbnailSize)

	// A random suffix, not a fixed ".tmp", so two processes thumbnailing
	// the same source concurrently (e.g. two filecorecli invocations)
	// don't clobber each other's partial write before the rename.
	tmp := outPath + "." + uuid.NewString() + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(out, dst); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

// resizeToFit nearest-neighbor-scales src so its longest edge is maxEdge,
// preserving aspect ratio. Good enough for a thumbnail: this module has no
// dependency on an image-resampling library, and freedesktop thumbnails
// are small enough that nearest-neighbor artifacts are not perceptible.
func resizeToFit(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}

	var newW, newH int
	if w >= h {
		newW = maxEdge
		newH = h * maxEdge / w
	} else {
		newH = maxEdge
		newW = w * maxEdge / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			srcX := b.Min.X + x*w/newW
			srcY := b.Min.Y + y*h/newH
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

// ExternalThumbnailer is a Thumbnailer backed by freedesktop-style
// thumbnailer .desktop Exec lines registered per mime type, e.g.
// "evince-thumbnailer -s %s %i %o".
type ExternalThumbnailer struct {
	// Commands maps a mime type to an Exec-line template using %i/%o/%s.
	Commands map[string]string
}

func (e *ExternalThumbnailer) Generate(ctx context.Context, srcPath, outPath, contentType string, size int) error {
	tmpl, ok := e.Commands[contentType]
	if !ok {
		return corefs.New(corefs.KindUnsupportedFormat, "no thumbnailer registered for "+contentType)
	}
	args := strings.Fields(tmpl)
	for i, a := range args {
		a = strings.ReplaceAll(a, "%i", srcPath)
		a = strings.ReplaceAll(a, "%o", outPath)
		a = strings.ReplaceAll(a, "%s", strconv.Itoa(size))
		args[i] = a
	}
	if len(args) == 0 {
		return corefs.New(corefs.KindUnsupportedFormat, "empty thumbnailer command for "+contentType)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		corelog.Debugf(nil, "nodetasks: thumbnailer %s failed: %v (%s)", args[0], err, string(out))
		return corefs.Wrap(corefs.KindIO, err)
	}
	return nil
}

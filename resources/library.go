// Package resources mirrors a directory tree into the resource catalog and
// keeps it current with filesystem events.
package resources

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
)

const defaultBaseURI = "fs://library"

// Library exposes the files under a root directory as MCP resources. File
// URIs use percent-escaped paths under the fs://library scheme.
type Library struct {
	root    string
	baseURI string
	catalog *registry.Resources
	log     *slog.Logger

	rescanDelay time.Duration
}

// NewLibrary builds a library over the directory at root. The root must
// exist.
func NewLibrary(root string, catalog *registry.Resources, log *slog.Logger) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving resource root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("resource root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource root is not a directory: %s", abs)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Library{
		root:        abs,
		baseURI:     defaultBaseURI,
		catalog:     catalog,
		log:         log.With(slog.String("component", "resources")),
		rescanDelay: 250 * time.Millisecond,
	}, nil
}

// Run performs the initial scan and then watches the tree until ctx is
// cancelled. Catalog mutations carry their own list_changed broadcasts.
func (l *Library) Run(ctx context.Context) error {
	if err := l.sync(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}
	defer w.Close()

	// Watch every directory; fsnotify does not recurse on its own.
	addDirs := func() {
		_ = filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			return w.Add(p)
		})
	}
	addDirs()

	// Bursts of events (editor saves, directory moves) collapse into one
	// rescan after a quiet period.
	var pending *time.Timer
	rescan := make(chan struct{}, 1)
	schedule := func() {
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(l.rescanDelay, func() {
			select {
			case rescan <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rescan:
			addDirs()
			if err := l.sync(); err != nil {
				l.log.Warn("resource rescan failed", slog.String("error", err.Error()))
			}
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Debug("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// sync reconciles the catalog against the current directory contents.
func (l *Library) sync() error {
	seen := make(map[string]struct{})

	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable nodes
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		uri := l.relToURI(rel)
		seen[uri] = struct{}{}

		res := mcp.Resource{
			URI:      uri,
			Name:     path.Base(rel),
			MimeType: mime.TypeByExtension(strings.ToLower(path.Ext(rel))),
		}
		if existing, ok := l.catalog.Get(uri); !ok || existing != res {
			l.catalog.Upsert(uri, res)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, res := range l.catalog.Snapshot() {
		if _, ok := seen[res.URI]; !ok {
			l.catalog.Remove(res.URI)
		}
	}
	return nil
}

// Read returns the contents of the resource at uri. Text files come back
// inline; binary files are base64-encoded.
func (l *Library) Read(uri string) (mcp.ResourceContents, error) {
	rel, ok := l.uriToRel(uri)
	if !ok {
		return mcp.ResourceContents{}, fmt.Errorf("resource not found: %s", uri)
	}

	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	real, err := filepath.EvalSymlinks(abs)
	if err != nil || !within(real, l.root) {
		return mcp.ResourceContents{}, fmt.Errorf("resource not found: %s", uri)
	}

	data, err := os.ReadFile(real)
	if err != nil {
		return mcp.ResourceContents{}, fmt.Errorf("reading resource: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(real)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	contents := mcp.ResourceContents{URI: uri, MimeType: mimeType}
	if utf8.Valid(data) && !strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "audio/") {
		contents.Text = string(data)
	} else {
		contents.Blob = base64.StdEncoding.EncodeToString(data)
	}
	return contents, nil
}

func (l *Library) relToURI(rel string) string {
	segs := strings.Split(rel, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return l.baseURI + "/" + strings.Join(segs, "/")
}

func (l *Library) uriToRel(uri string) (string, bool) {
	base := l.baseURI + "/"
	if !strings.HasPrefix(uri, base) {
		return "", false
	}
	segs := strings.Split(strings.TrimPrefix(uri, base), "/")
	for i, s := range segs {
		dec, err := url.PathUnescape(s)
		if err != nil {
			return "", false
		}
		segs[i] = dec
	}
	rel := path.Clean(strings.Join(segs, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func within(target, root string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

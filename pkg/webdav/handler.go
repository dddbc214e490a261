package webdav

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/webdav"

	"github.com/reeldav/reeldav/internal/logger"
	"github.com/reeldav/reeldav/internal/utils"
	"github.com/reeldav/reeldav/pkg/upstream"
	"github.com/reeldav/reeldav/pkg/version"
	"github.com/reeldav/reeldav/pkg/vfs"
)

// Handler serves the virtual media tree over WebDAV. It implements
// webdav.FileSystem and handles the read path itself; everything that would
// mutate the tree is rejected.
type Handler struct {
	vfs    *vfs.VFS
	client *upstream.Client
	logger zerolog.Logger
}

func NewHandler(v *vfs.VFS, client *upstream.Client) *Handler {
	return &Handler{
		vfs:    v,
		client: client,
		logger: logger.New("webdav"),
	}
}

// Readiness holds requests off with a 503 until the first snapshot exists.
func (h *Handler) Readiness(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.vfs.IsReady() {
			w.Header().Set("Retry-After", "5")
			http.Error(w, "Service is building its library, please try again shortly", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Mkdir implements webdav.FileSystem
func (h *Handler) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission // Read-only filesystem
}

// RemoveAll implements webdav.FileSystem
func (h *Handler) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

// Rename implements webdav.FileSystem
func (h *Handler) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func nodeInfo(n vfs.Node) os.FileInfo {
	mode := os.FileMode(0644)
	if n.IsDir() {
		mode = 0755 | os.ModeDir
	}
	return &FileInfo{
		name:    n.Name(),
		size:    n.Size(),
		mode:    mode,
		modTime: n.ModTime(),
		isDir:   n.IsDir(),
	}
}

func (h *Handler) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, os.ErrPermission
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	name = utils.PathUnescape(path.Clean(name))

	// version.txt is synthetic and lives at the root
	if name == "/version.txt" {
		info := version.GetInfo().String()
		return &File{
			name:    "version.txt",
			size:    int64(len(info)),
			content: []byte(info),
			href:    "/version.txt",
			modTime: time.Now(),
		}, nil
	}

	node, err := h.vfs.Resolve(ctx, name)
	if err != nil {
		h.logger.Debug().Str("path", name).Msg("File not found")
		return nil, os.ErrNotExist
	}

	if dir, ok := node.(*vfs.Dir); ok {
		children := dir.Children()
		infos := make([]os.FileInfo, 0, len(children)+1)
		for _, child := range children {
			infos = append(infos, nodeInfo(child))
		}

		displayName := path.Base(name)
		if name == "/" {
			displayName = "/"
			infos = append(infos, &FileInfo{
				name:    "version.txt",
				size:    int64(len(version.GetInfo().String())),
				mode:    0644,
				modTime: time.Now(),
			})
		}
		return &File{
			name:     displayName,
			isDir:    true,
			children: infos,
			modTime:  dir.ModTime(),
		}, nil
	}

	file := node.(*vfs.File)
	return &File{
		name:    file.Name(),
		size:    file.Size(),
		modTime: file.ModTime(),
		client:  h.client,
		ctx:     ctx,
		url:     h.client.FileURL(file.Href()),
		href:    file.Href(),
	}, nil
}

// Stat implements webdav.FileSystem
func (h *Handler) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	f, err := h.OpenFile(ctx, name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return f.Stat()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
		return
	case http.MethodHead:
		h.handleHead(w, r)
		return
	case http.MethodOptions:
		h.handleOptions(w, r)
		return
	case "PROPFIND":
		h.handlePropfind(w, r)
		return
	case http.MethodPut, http.MethodDelete, http.MethodPost,
		"MKCOL", "COPY", "MOVE", "PROPPATCH":
		http.Error(w, "Read-only filesystem", http.StatusForbidden)
		return
	}

	handler := &webdav.Handler{
		FileSystem: h,
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				h.logger.Trace().
					Err(err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("WebDAV error")
			}
		},
	}
	handler.ServeHTTP(w, r)
}

func getContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".mkv":
		return "video/x-matroska"
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".m4v":
		return "video/x-m4v"
	case ".ts":
		return "video/mp2t"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".iso":
		return "application/x-iso9660-image"
	case ".srt", ".sub", ".ass", ".ssa":
		return "text/plain"
	case ".vtt":
		return "text/vtt"
	}
	return "application/octet-stream"
}

func etagFor(href string, size int64) string {
	return fmt.Sprintf("\"%x-%d\"", xxhash.Sum64String(href), size)
}

var tplDirectory = template.Must(template.New("directory").Parse(`<!DOCTYPE html>
<html>
<head><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<table>
{{if .ShowParent}}<tr><td><a href="{{.ParentPath}}">../</a></td><td></td></tr>
{{end}}{{range .Rows}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Size}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type dirRow struct {
	Name string
	Href string
	Size string
}

func (h *Handler) serveDirectory(w http.ResponseWriter, r *http.Request, file *File) {
	cleanPath := path.Clean(r.URL.Path)
	parentPath := path.Dir(cleanPath)

	rows := make([]dirRow, 0, len(file.children))
	for _, info := range file.children {
		row := dirRow{
			Name: info.Name(),
			Href: fastEscapePath(path.Join(cleanPath, info.Name())),
		}
		if info.IsDir() {
			row.Name += "/"
			row.Href += "/"
		} else {
			row.Size = utils.FormatSize(info.Size())
		}
		rows = append(rows, row)
	}

	data := struct {
		Path       string
		ParentPath string
		ShowParent bool
		Rows       []dirRow
	}{
		Path:       cleanPath,
		ParentPath: parentPath,
		ShowParent: cleanPath != "/",
		Rows:       rows,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tplDirectory.Execute(w, data); err != nil {
		h.logger.Debug().Err(err).Msg("Directory listing aborted")
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	fRaw, err := h.OpenFile(r.Context(), r.URL.Path, os.O_RDONLY, 0)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer fRaw.Close()

	fi, err := fRaw.Stat()
	if err != nil {
		http.Error(w, "Server Error", http.StatusInternalServerError)
		return
	}

	file := fRaw.(*File)
	if fi.IsDir() {
		h.serveDirectory(w, r, file)
		return
	}

	w.Header().Set("ETag", etagFor(file.href, fi.Size()))
	w.Header().Set("Content-Type", getContentType(fi.Name()))

	// ServeContent handles Range, If-Range and conditional requests; the
	// File seeks by reopening the upstream stream at the new offset.
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), file)
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	f, err := h.OpenFile(r.Context(), r.URL.Path, os.O_RDONLY, 0)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to stat file")
		http.Error(w, "Server Error", http.StatusInternalServerError)
		return
	}
	if !fi.IsDir() {
		w.Header().Set("ETag", etagFor(f.(*File).href, fi.Size()))
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.Header().Set("Content-Type", getContentType(fi.Name()))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", fi.Size()))
	w.Header().Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND")
	w.Header().Set("DAV", "1, 2")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request) {
	depth := r.Header.Get("Depth")
	if depth == "infinity" {
		http.Error(w, "Depth infinity is not supported", http.StatusForbidden)
		return
	}

	f, err := h.OpenFile(r.Context(), r.URL.Path, os.O_RDONLY, 0)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		http.Error(w, "Server Error", http.StatusInternalServerError)
		return
	}

	var children []os.FileInfo
	if depth != "0" && fi.IsDir() {
		children = f.(*File).children
	}

	writeXml(w, http.StatusMultiStatus, filesToXML(path.Clean(r.URL.Path), fi, children))
}

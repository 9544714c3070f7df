// Package content implements the Text and Media variants of the
// ApplicationLayer: a read-only FileCatalog served over GetFilesList,
// GetFile and GetMedia.
//
// Grounded on the teacher's device/room.MemoryClientStore constructor
// idiom (Config-struct-into-New, slog.WithGroup logger) generalized from
// an in-memory roster to a filesystem-backed, immutable-after-
// construction catalog — there being no file-serving component anywhere
// in the teacher to imitate more directly.
package content

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/device/endpoint"
)

// Catalog maps a logical file name to its path relative to Application's
// root directory. Immutable after construction.
type Catalog map[string]string

// TextCatalog seeds the five demo text files under text_files/.
func TextCatalog() Catalog {
	c := make(Catalog, 5)
	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("file%d.html", i)
		c[name] = name
	}
	return c
}

// MediaCatalog seeds the five demo media files under data_files/.
func MediaCatalog() Catalog {
	c := make(Catalog, 5)
	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("media%d.jpg", i)
		c[name] = name
	}
	return c
}

// Application implements endpoint.Application for a Text or Media
// content server.
type Application struct {
	log     *slog.Logger
	kind    core.ServerKind // TextServer or MediaServer
	root    string          // cwd/src/text_files or cwd/src/data_files
	catalog Catalog
}

// New creates a content Application of the given server kind, serving
// files out of root according to catalog. Falls back to slog.Default()
// if logger is nil.
func New(kind core.ServerKind, root string, catalog Catalog, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{
		log:     logger.WithGroup("content"),
		kind:    kind,
		root:    root,
		catalog: catalog,
	}
}

// Handle dispatches one assembled client request.
func (a *Application) Handle(e *endpoint.Endpoint, sessionID uint64, source core.NodeId, msg appmsg.ClientMessage) {
	switch msg.Kind {
	case appmsg.GetServerType:
		e.Reply(source, appmsg.ServerMessage{Kind: appmsg.ServerType, ServerKind: a.kind})
	case appmsg.GetFilesList:
		e.Reply(source, appmsg.ServerMessage{Kind: appmsg.FilesList, FilesList: a.names()})
	case appmsg.GetFile:
		a.getFile(e, source, msg.Name)
	case appmsg.GetMedia:
		a.getMedia(e, source, msg.Name)
	default:
		a.log.Warn("wrong server type for request", "kind", msg.Kind, "source", source)
	}
}

func (a *Application) names() []string {
	names := make([]string, 0, len(a.catalog))
	for name := range a.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Application) getFile(e *endpoint.Endpoint, source core.NodeId, name string) {
	path, ok := a.catalog[name]
	if !ok {
		a.log.Warn("get_file: unknown file", "name", name)
		return
	}
	data, err := os.ReadFile(filepath.Join(a.root, path))
	if err != nil {
		a.log.Warn("get_file: read failed", "name", name, "error", err)
		return
	}
	e.Reply(source, appmsg.ServerMessage{
		Kind:   appmsg.File,
		FileID: name,
		Size:   len(data),
		Data:   data,
	})
}

func (a *Application) getMedia(e *endpoint.Endpoint, source core.NodeId, name string) {
	path, ok := a.catalog[name]
	if !ok {
		path = name
	}
	f, err := os.Open(filepath.Join(a.root, path))
	if err != nil {
		a.log.Warn("get_media: open failed", "name", name, "error", err)
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		a.log.Warn("get_media: decode failed", "name", name, "error", err)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		a.log.Warn("get_media: jpeg re-encode failed", "name", name, "error", err)
		return
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(encoded, buf.Bytes())

	e.Reply(source, appmsg.ServerMessage{
		Kind:      appmsg.Media,
		MediaName: name,
		Data:      encoded,
	})
}

package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/core/packet"
	"github.com/overlaynet/endpoint/device/endpoint"
)

// newTestServer wires a content Application into a running Endpoint and
// seeds the topology so Reply can route back to client 7 over neighbour 3.
func newTestServer(t *testing.T, kind core.ServerKind, root string, catalog Catalog) (*endpoint.Endpoint, *Application, chan *packet.Packet) {
	t.Helper()
	app := New(kind, root, catalog, nil)
	e := endpoint.New(endpoint.Config{
		SelfID:      1,
		SelfKind:    core.Server,
		SessionSeed: 1,
	}, app)

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		e.Stop()
	})

	ch3 := make(chan *packet.Packet, 16)
	e.Commands() <- endpoint.Command{
		Kind: endpoint.AddSender, NodeID: 3, NeighbourKind: core.Drone, Channel: ch3,
	}
	// Let the run loop handle AddSender before draining its reflood.
	time.Sleep(10 * time.Millisecond)
	drain(ch3)

	e.Packets() <- &packet.Packet{
		Kind: packet.KindFloodResponse,
		FloodResponse: &packet.FloodResponse{PathTrace: []packet.PathEntry{
			{ID: 1, Kind: core.Server},
			{ID: 3, Kind: core.Drone},
			{ID: 7, Kind: core.Client},
		}},
	}
	time.Sleep(10 * time.Millisecond)
	return e, app, ch3
}

func drain(ch chan *packet.Packet) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// recv waits for the next reply. A reply spans several MsgFragment
// packets; recv reads all of them and returns one packet whose payload
// joins theirs in order.
func recv(t *testing.T, ch chan *packet.Packet) *packet.Packet {
	t.Helper()
	var pkt *packet.Packet
	select {
	case pkt = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a reply packet")
		return nil
	}
	if pkt.Kind != packet.KindMsgFragment {
		return pkt
	}
	whole := pkt.Clone()
	for i := uint64(1); i < pkt.Fragment.TotalFragments; i++ {
		select {
		case next := <-ch:
			whole.Fragment.Payload = append(whole.Fragment.Payload, next.Fragment.Payload...)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for the rest of a reply")
		}
	}
	return whole
}

func decodeReply(t *testing.T, pkt *packet.Packet) appmsg.ServerMessage {
	t.Helper()
	if pkt.Kind != packet.KindMsgFragment {
		t.Fatalf("got packet kind %v, want MsgFragment", pkt.Kind)
	}
	msg, err := appmsg.Decode(pkt.Fragment.Payload)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return msg.Server
}

func TestGetServerTypeReportsOwnVariant(t *testing.T) {
	root := t.TempDir()
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetServerType})
	reply := decodeReply(t, recv(t, ch3))
	if reply.Kind != appmsg.ServerType || reply.ServerKind != core.TextServer {
		t.Errorf("got %+v, want ServerType(Text)", reply)
	}
}

func TestGetFilesListReportsCatalogKeys(t *testing.T) {
	root := t.TempDir()
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetFilesList})
	reply := decodeReply(t, recv(t, ch3))
	if reply.Kind != appmsg.FilesList || len(reply.FilesList) != 5 {
		t.Fatalf("got %+v, want a FilesList of 5 entries", reply)
	}
}

func TestGetFileReadsFromDisk(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file1.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetFile, Name: "file1.html"})
	reply := decodeReply(t, recv(t, ch3))
	if reply.Kind != appmsg.File || reply.FileID != "file1.html" || string(reply.Data) != "<h1>hi</h1>" {
		t.Errorf("got %+v, want File{file1.html, <h1>hi</h1>}", reply)
	}
	if reply.Size != len("<h1>hi</h1>") {
		t.Errorf("Size = %d, want %d", reply.Size, len("<h1>hi</h1>"))
	}
}

func TestGetFileMissingOnDiskLogsAndDropsSilently(t *testing.T) {
	root := t.TempDir()
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetFile, Name: "file1.html"})
	select {
	case pkt := <-ch3:
		t.Errorf("missing file should produce no reply, got %+v", pkt)
	default:
	}
}

func TestGetFileUnknownNameLogsAndDropsSilently(t *testing.T) {
	root := t.TempDir()
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetFile, Name: "nope.html"})
	select {
	case pkt := <-ch3:
		t.Errorf("unknown name should produce no reply, got %+v", pkt)
	default:
	}
}

func TestGetMediaDecodesReencodesAndBase64Encodes(t *testing.T) {
	root := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 10, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(root, "media1.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	e, app, ch3 := newTestServer(t, core.MediaServer, root, MediaCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetMedia, Name: "media1.jpg"})
	reply := decodeReply(t, recv(t, ch3))
	if reply.Kind != appmsg.Media || reply.MediaName != "media1.jpg" {
		t.Fatalf("got %+v, want Media(media1.jpg)", reply)
	}

	raw, err := base64.StdEncoding.DecodeString(string(reply.Data))
	if err != nil {
		t.Fatalf("reply payload is not valid base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("base64 payload does not decode as JPEG: %v", err)
	}
}

func TestGetMediaFallsBackToNameWhenUncataloged(t *testing.T) {
	root := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	f, err := os.Create(filepath.Join(root, "mystery.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	e, app, ch3 := newTestServer(t, core.MediaServer, root, MediaCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetMedia, Name: "mystery.png"})
	reply := decodeReply(t, recv(t, ch3))
	if reply.Kind != appmsg.Media || reply.MediaName != "mystery.png" {
		t.Fatalf("got %+v, want Media(mystery.png) served via name fallback", reply)
	}
}

func TestGetMediaDecodeFailureLogsAndDropsSilently(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "media1.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	e, app, ch3 := newTestServer(t, core.MediaServer, root, MediaCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.GetMedia, Name: "media1.jpg"})
	select {
	case pkt := <-ch3:
		t.Errorf("undecodable media should produce no reply, got %+v", pkt)
	default:
	}
}

func TestChatOperationsAreIgnored(t *testing.T) {
	root := t.TempDir()
	e, app, ch3 := newTestServer(t, core.TextServer, root, TextCatalog())
	app.Handle(e, 1, 7, appmsg.ClientMessage{Kind: appmsg.RegisterToChat})
	select {
	case pkt := <-ch3:
		t.Errorf("chat operations are the wrong server type, expected no reply, got %+v", pkt)
	default:
	}
}

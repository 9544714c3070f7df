// Package appmsg defines the application-message envelope exchanged once
// a MessageFactory has reassembled a complete message, and the client and
// server message content types carried inside it.
//
// Wire-level serialization of application messages is explicitly out of
// scope (spec.md §1): this package's Encode/Decode are the assumed-
// available fragmenter/defragmenter collaborator, implemented with the
// standard library's encoding/gob since nothing in the example pack
// supplies a serializer for this shape and gob is the idiomatic Go choice
// for an in-process, same-binary wire format.
package appmsg

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/overlaynet/endpoint/core"
)

// ErrNotFromClient names the condition of an assembled envelope whose
// content is not FromClient. The dispatcher does not return it: it logs
// and discards such envelopes.
var ErrNotFromClient = errors.New("application message is not from a client")

// ClientMessage is the tagged union of requests a client may send.
type ClientMessage struct {
	Kind ClientMessageKind

	// SendMessage fields.
	RecipientID core.NodeId
	Content     string

	// GetFile / GetMedia field.
	Name string
}

// ClientMessageKind enumerates ClientMessage variants.
type ClientMessageKind uint8

const (
	GetServerType ClientMessageKind = iota
	RegisterToChat
	Logout
	GetClientList
	SendMessage
	GetFilesList
	GetFile
	GetMedia
)

func (k ClientMessageKind) String() string {
	switch k {
	case GetServerType:
		return "GetServerType"
	case RegisterToChat:
		return "RegisterToChat"
	case Logout:
		return "Logout"
	case GetClientList:
		return "GetClientList"
	case SendMessage:
		return "SendMessage"
	case GetFilesList:
		return "GetFilesList"
	case GetFile:
		return "GetFile"
	case GetMedia:
		return "GetMedia"
	default:
		return fmt.Sprintf("ClientMessageKind(%d)", uint8(k))
	}
}

// ServerMessage is the tagged union of replies a server may send.
type ServerMessage struct {
	Kind ServerMessageKind

	ServerKind core.ServerKind // ServerType
	ClientList []core.NodeId   // ClientList
	SenderID   core.NodeId     // MessageReceived, UnreachableClient
	Content    string          // MessageReceived

	FilesList []string // FilesList

	FileID string // File
	Size   int    // File
	Data   []byte // File content, or Media base64 payload

	MediaName string // Media
}

// ServerMessageKind enumerates ServerMessage variants.
type ServerMessageKind uint8

const (
	ServerType ServerMessageKind = iota
	SuccessfulRegistration
	SuccessfulLogOut
	ClientList
	MessageReceived
	UnreachableClient
	FilesList
	File
	Media
)

func (k ServerMessageKind) String() string {
	switch k {
	case ServerType:
		return "ServerType"
	case SuccessfulRegistration:
		return "SuccessfulRegistration"
	case SuccessfulLogOut:
		return "SuccessfulLogOut"
	case ClientList:
		return "ClientList"
	case MessageReceived:
		return "MessageReceived"
	case UnreachableClient:
		return "UnreachableClient"
	case FilesList:
		return "FilesList"
	case File:
		return "File"
	case Media:
		return "Media"
	default:
		return fmt.Sprintf("ServerMessageKind(%d)", uint8(k))
	}
}

// ContentKind tags whether an envelope carries a ClientMessage or a
// ServerMessage.
type ContentKind uint8

const (
	FromClient ContentKind = iota
	FromServer
)

// ApplicationMessage is the envelope MessageFactory reassembles fragments
// into and fragments replies out of.
type ApplicationMessage struct {
	SessionID     uint64
	SourceID      core.NodeId
	DestinationID core.NodeId
	ContentKind   ContentKind
	Client        ClientMessage
	Server        ServerMessage
}

func init() {
	gob.Register(ApplicationMessage{})
}

// Encode serializes an envelope to bytes.
func Encode(msg ApplicationMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("encode application message: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes an envelope from bytes previously produced by Encode.
func Decode(data []byte) (ApplicationMessage, error) {
	var msg ApplicationMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return ApplicationMessage{}, fmt.Errorf("decode application message: %w", err)
	}
	return msg, nil
}

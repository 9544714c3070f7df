// Package chat implements the Chat variant of the ApplicationLayer: a
// registered-client roster and message relay between registered clients.
//
// Grounded on the teacher's device/room.MemoryClientStore (a
// mutex-guarded in-memory slice keyed by node id, Config-struct-into-New
// constructor, slog.WithGroup logger) — generalized from MeshCore's rich
// ACL/post-store room server down to the spec's plain registration
// roster, since persistent posts and admin ACLs are out of scope here.
package chat

import (
	"log/slog"
	"sync"

	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
	"github.com/overlaynet/endpoint/device/endpoint"
)

// Application implements endpoint.Application for a chat server.
type Application struct {
	log *slog.Logger

	mu       sync.Mutex
	clients  []core.NodeId
	registry map[core.NodeId]struct{}
}

// New creates a chat Application. Falls back to slog.Default() if logger
// is nil.
func New(logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{
		log:      logger.WithGroup("chat"),
		registry: make(map[core.NodeId]struct{}),
	}
}

// Handle dispatches one assembled client request.
func (a *Application) Handle(e *endpoint.Endpoint, sessionID uint64, source core.NodeId, msg appmsg.ClientMessage) {
	switch msg.Kind {
	case appmsg.GetServerType:
		e.Reply(source, appmsg.ServerMessage{Kind: appmsg.ServerType, ServerKind: core.ChatServer})
	case appmsg.RegisterToChat:
		a.register(e, source)
	case appmsg.Logout:
		a.logout(e, source)
	case appmsg.GetClientList:
		e.Reply(source, appmsg.ServerMessage{Kind: appmsg.ClientList, ClientList: a.snapshot()})
	case appmsg.SendMessage:
		a.sendMessage(e, source, msg)
	default:
		a.log.Warn("wrong server type for request", "kind", msg.Kind, "source", source)
	}
}

func (a *Application) register(e *endpoint.Endpoint, id core.NodeId) {
	a.mu.Lock()
	_, already := a.registry[id]
	if !already {
		a.registry[id] = struct{}{}
		a.clients = append(a.clients, id)
	}
	a.mu.Unlock()

	if already {
		a.log.Error("client already registered", "client", id)
		return
	}
	e.Reply(id, appmsg.ServerMessage{Kind: appmsg.SuccessfulRegistration})
}

func (a *Application) logout(e *endpoint.Endpoint, id core.NodeId) {
	a.mu.Lock()
	_, registered := a.registry[id]
	if registered {
		delete(a.registry, id)
		a.clients = removeNodeID(a.clients, id)
	}
	a.mu.Unlock()

	if !registered {
		a.log.Error("logout from an unregistered client", "client", id)
		return
	}
	e.Reply(id, appmsg.ServerMessage{Kind: appmsg.SuccessfulLogOut})
}

func (a *Application) sendMessage(e *endpoint.Endpoint, source core.NodeId, msg appmsg.ClientMessage) {
	a.mu.Lock()
	_, srcOK := a.registry[source]
	_, dstOK := a.registry[msg.RecipientID]
	a.mu.Unlock()

	if srcOK && dstOK {
		e.Reply(msg.RecipientID, appmsg.ServerMessage{
			Kind:     appmsg.MessageReceived,
			SenderID: source,
			Content:  msg.Content,
		})
		return
	}

	a.log.Warn("message to unreachable client", "source", source, "recipient", msg.RecipientID)
	e.Reply(msg.RecipientID, appmsg.ServerMessage{Kind: appmsg.UnreachableClient, SenderID: source})
}

func (a *Application) snapshot() []core.NodeId {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.NodeId, len(a.clients))
	copy(out, a.clients)
	return out
}

func removeNodeID(ids []core.NodeId, target core.NodeId) []core.NodeId {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

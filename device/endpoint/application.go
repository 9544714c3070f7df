package endpoint

import (
	"github.com/overlaynet/endpoint/core"
	"github.com/overlaynet/endpoint/core/appmsg"
)

// Application is the chat or content logic plugged into an Endpoint. It
// receives every assembled client request and replies (if any) through
// the Endpoint's Reply method, so it never touches the Router, cache or
// MessageFactory directly.
//
// device/app/chat.Application and device/app/content.Application
// implement this interface. The dependency edge runs one way (app ->
// endpoint); this package never imports either of them, the same way the
// teacher's device/router never imports device/room even though
// router.PacketHandler is what drives it.
type Application interface {
	Handle(e *Endpoint, sessionID uint64, source core.NodeId, msg appmsg.ClientMessage)
}

package endpoint

// handleCommand is the ControlPlane entry point: a state machine on
// cmd.Kind.
func (e *Endpoint) handleCommand(cmd Command) {
	switch cmd.Kind {
	case InitFlooding:
		e.reinit()
	case LogNetwork:
		e.logNetwork()
	case AddSender:
		e.addSender(cmd)
	case RemoveSender:
		e.removeSender(cmd)
	}
}

func (e *Endpoint) addSender(cmd Command) {
	e.mu.Lock()
	_, known := e.senders[cmd.NodeID]
	if !known {
		e.senders[cmd.NodeID] = cmd.Channel
	}
	e.mu.Unlock()

	if known {
		e.log.Warn("ignoring AddSender for already-known neighbour", "node", cmd.NodeID)
		return
	}

	e.router.AddNeighbour(cmd.NodeID, cmd.NeighbourKind)
	e.reinit()
}

func (e *Endpoint) removeSender(cmd Command) {
	e.mu.Lock()
	_, known := e.senders[cmd.NodeID]
	delete(e.senders, cmd.NodeID)
	e.mu.Unlock()

	if !known {
		return
	}

	e.router.RemoveNeighbour(cmd.NodeID)
	e.reinit()
}

// reinit clears the routing table and refloods every known neighbour.
func (e *Endpoint) reinit() {
	e.router.ClearTopology()
	e.reflood()
}

func (e *Endpoint) logNetwork() {
	e.router.LogTopology(e.log)
}

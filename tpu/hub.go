package tpu

import "sync"

// Hub wires several SimBus instances into one simulated network. Each TPU's
// address is the key other TPUs use as the destination of XMIT. Delivery
// order into a single peer's rx FIFO is FIFO per sender; across senders it
// is unspecified, since Pump visits senders in map iteration order. Each
// enqueue is delivered at most once and never reordered within a tx buffer.
type Hub struct {
	mu    sync.Mutex
	buses map[uint16]*SimBus
}

// NewHub creates an empty network hub.
func NewHub() *Hub {
	return &Hub{buses: make(map[uint16]*SimBus)}
}

// Join registers a bus under the given network address. Packets XMIT'd to
// that address by any joined bus are delivered to this one's rx FIFO.
func (h *Hub) Join(addr uint16, bus *SimBus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buses[addr] = bus
}

// Leave removes a bus from the hub.
func (h *Hub) Leave(addr uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.buses, addr)
}

// Pump drains every joined bus's tx FIFO once and routes each packet to the
// bus registered under its destination address. Packets addressed to an
// unjoined address are dropped, same as a full buffer would be.
func (h *Hub) Pump() {
	h.mu.Lock()
	buses := make(map[uint16]*SimBus, len(h.buses))
	for addr, b := range h.buses {
		buses[addr] = b
	}
	h.mu.Unlock()

	for senderAddr, sender := range buses {
		for _, pkt := range sender.DrainTx() {
			// pkt.Addr is the destination the sender named in XMIT. On
			// arrival the rx entry instead carries the sender's own
			// address, matching RECV's "sender in X" convention.
			if dest, ok := buses[pkt.Addr]; ok {
				dest.Deliver(Packet{Addr: senderAddr, Data: pkt.Data})
			}
		}
	}
}

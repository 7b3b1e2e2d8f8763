// Package udp sends snapshot datagrams to a fixed destination, typically a
// broadcast or multicast address on the local network.
package udp

import (
	"encoding/json"
	"fmt"
	"net"
)

// MaxDatagram is the largest UDP payload that fits in one IPv4 packet.
const MaxDatagram = 65507

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type Broadcaster struct {
	dest string
	conn udpConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(
	dest string,
	resolve func(network, address string) (*net.UDPAddr, error),
	dial func(network string, laddr, raddr *net.UDPAddr) (udpConn, error),
) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{dest: dest, conn: conn}, nil
}

func (b *Broadcaster) Dest() string { return b.dest }

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) > MaxDatagram {
		return fmt.Errorf("payload of %d bytes exceeds one datagram", len(payload))
	}
	_, err := b.conn.Write(payload)
	return err
}

// SendJSON sends v as one JSON datagram terminated by a newline, so
// line-oriented listeners such as netcat print one snapshot per line.
func (b *Broadcaster) SendJSON(v any) error {
	p, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode datagram: %w", err)
	}
	return b.Send(append(p, '\n'))
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

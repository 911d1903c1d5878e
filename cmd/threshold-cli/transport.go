package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
)

// tcpTransport wires a full mesh of TCP connections between the parties in
// a run, one persistent net.Conn per counterparty, satisfying both
// pkg/twop's (io.Reader, io.Writer) pair contract and pkg/threshold's
// Transport interface. Each conn is wrapped once in a bufio pair: the
// protocol's phase-boundary flushes land on the bufio.Writer, and the
// reader must persist across PairConn calls so buffered bytes survive.
type tcpTransport struct {
	conns map[party.ID]net.Conn
	recvs map[party.ID]*bufio.Reader
	sends map[party.ID]*bufio.Writer
}

func newTCPTransport(conns map[party.ID]net.Conn) *tcpTransport {
	t := &tcpTransport{
		conns: conns,
		recvs: make(map[party.ID]*bufio.Reader, len(conns)),
		sends: make(map[party.ID]*bufio.Writer, len(conns)),
	}
	for id, c := range conns {
		t.recvs[id] = bufio.NewReader(c)
		t.sends[id] = bufio.NewWriter(c)
	}
	return t
}

func (t *tcpTransport) PairConn(counterparty party.ID) (io.Reader, io.Writer) {
	return t.recvs[counterparty], t.sends[counterparty]
}

func (t *tcpTransport) Close() {
	for _, c := range t.conns {
		c.Close()
	}
}

// dialMesh establishes one TCP connection per counterparty among a group of
// len(addrs) parties. Connection direction reuses party.IsBob's index rule:
// the higher-indexed party dials out, the lower-indexed party listens and
// accepts, so the two parties in a pair never race to both dial or both
// listen. addrs[i] is the host:port party i listens on; addrs[self] is not
// read: this process binds listenPort on all interfaces.
func dialMesh(self party.ID, addrs []string, listenPort int) (*tcpTransport, error) {
	n := len(addrs)
	conns := make(map[party.ID]net.Conn, n-1)

	var ln net.Listener
	if int(self) < n-1 {
		var err error
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", listenPort))
		if err != nil {
			return nil, fmt.Errorf("listen on :%d: %w", listenPort, err)
		}
		defer ln.Close()
	}

	for j := 0; j < n; j++ {
		other := party.ID(j)
		if other == self || !party.IsBob(self, other) {
			continue
		}
		var conn net.Conn
		var err error
		for attempt := 0; attempt < 100; attempt++ {
			conn, err = net.Dial("tcp", strings.TrimSpace(addrs[j]))
			if err == nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if err != nil {
			return nil, fmt.Errorf("dial party %d at %s: %w", other, addrs[j], err)
		}
		if _, err := conn.Write([]byte{byte(self)}); err != nil {
			return nil, fmt.Errorf("handshake with party %d: %w", other, err)
		}
		conns[other] = conn
	}

	incoming := 0
	for j := 0; j < n; j++ {
		if party.ID(j) != self && party.IsBob(party.ID(j), self) {
			incoming++
		}
	}
	for i := 0; i < incoming; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("accept: %w", err)
		}
		var idBuf [1]byte
		if _, err := io.ReadFull(conn, idBuf[:]); err != nil {
			return nil, fmt.Errorf("handshake read: %w", err)
		}
		conns[party.ID(idBuf[0])] = conn
	}

	return newTCPTransport(conns), nil
}

func parseAddrs(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

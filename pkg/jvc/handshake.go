// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"fmt"
	"io"
	"time"
)

// handshake runs the LAN control handshake on a freshly dialed link:
//
//	device → PJ_OK
//	client → PJREQ            (or PJREQ_<password>)
//	device → PJACK | PJNAK
//
// The whole sequence is bounded by the handshake timeout.
func (t *Transport) handshake(link Link) error {
	deadline := time.Now().Add(t.handshakeTimeout)
	if err := link.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	greeting, err := readToken(link)
	if err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", ErrHandshakeFailed, HandshakeGreeting, err)
	}
	if greeting != HandshakeGreeting {
		return fmt.Errorf("%w: greeting %q (want %q)", ErrHandshakeFailed, greeting, HandshakeGreeting)
	}

	if _, err := link.Write(HandshakeFrame(t.password)); err != nil {
		return fmt.Errorf("%w: sending %s: %v", ErrHandshakeFailed, HandshakeRequest, err)
	}

	ack, err := readToken(link)
	if err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", ErrHandshakeFailed, HandshakeAck, err)
	}
	switch ack {
	case HandshakeAck:
	case HandshakeNak:
		return fmt.Errorf("%w: %s (password rejected)", ErrHandshakeFailed, HandshakeNak)
	default:
		return fmt.Errorf("%w: acknowledgement %q (want %q)", ErrHandshakeFailed, ack, HandshakeAck)
	}

	t.log.Debug("handshake complete")
	return link.SetReadDeadline(time.Time{})
}

// HandshakeFrame returns the request token the client sends after PJ_OK
func HandshakeFrame(password string) []byte {
	if password == "" {
		return []byte(HandshakeRequest)
	}
	return []byte(HandshakeRequest + "_" + password)
}

func readToken(r io.Reader) (string, error) {
	token := make([]byte, handshakeToken)
	if _, err := io.ReadFull(r, token); err != nil {
		return "", err
	}
	return string(token), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import "errors"

// Connection errors
var (
	ErrConnectTimeout   = errors.New("jvc: connect timeout")
	ErrConnectRefused   = errors.New("jvc: connect refused")
	ErrHandshakeFailed  = errors.New("jvc: handshake failed")
	ErrConnectionClosed = errors.New("jvc: connection closed")
	ErrTransportWrite   = errors.New("jvc: transport write failed")
	ErrReceiveTimeout   = errors.New("jvc: receive timeout")
)

// Exchange errors
var (
	ErrCommandTimedOut  = errors.New("jvc: command timed out")
	ErrMalformedFrame   = errors.New("jvc: malformed frame")
	ErrRejected         = errors.New("jvc: command rejected")
	ErrInvalidCommand   = errors.New("jvc: invalid command")
	ErrUnknownCommand   = errors.New("jvc: unknown command")
	ErrReadinessTimeout = errors.New("jvc: device did not reach expected state in time")
	ErrInvalidConfig    = errors.New("jvc: invalid config")
)

// IsFatal reports whether err leaves the connection unusable. The caller
// should treat the session as dead and reconnect.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrTransportWrite)
}

// NeedsReconnect reports whether the connection should be closed and reopened
// before further use. A malformed frame means the byte stream lost sync.
func NeedsReconnect(err error) bool {
	return IsFatal(err) || errors.Is(err, ErrMalformedFrame)
}

// Package domain contains identifiers and value types without transport logic.
package domain

import "github.com/google/uuid"

// ConnID names one live relay connection. It doubles as the peer identifier
// a user reads out to the person they want to call.
type ConnID string

// CallID names one negotiation between two peers.
type CallID string

// NewConnID is assigned by the relay on accept; ids are never reused.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

func NewCallID() CallID {
	return CallID(uuid.NewString())
}

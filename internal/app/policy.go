package app

import (
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
)

type BackpressureAction int

const (
	DropMessage BackpressureAction = iota
	Disconnect
)

// Policy decides what happens to a target whose outbound queue is full.
// Either way the sender is never told.
type Policy interface {
	OnBackPressure(target domain.ConnID) BackpressureAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.ConnID) BackpressureAction { return DropMessage }

// DisconnectPolicy drops the slow consumer, as a stalled browser tab
// would otherwise keep missing signaling messages.
type DisconnectPolicy struct{}

func (DisconnectPolicy) OnBackPressure(domain.ConnID) BackpressureAction { return Disconnect }

func PolicyFor(name string) Policy {
	if name == config.DropPolicyDisconnect {
		return DisconnectPolicy{}
	}
	return DropPolicy{}
}

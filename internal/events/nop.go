// Package events holds publisher implementations that need no broker.
package events

import (
	"context"

	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
)

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

var _ interfaces.EventPublisher = NopPublisher{}

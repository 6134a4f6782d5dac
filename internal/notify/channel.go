// Package notify implements the delivery channels a fan-out payload is sent through.
package notify

import (
	"context"
	"errors"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
)

// Channel 一种投递方式
type Channel interface {
	Send(ctx context.Context, p fanout.Payload) error
}

var _ fanout.Sender = (Channel)(nil)

// Multi sends through every channel and joins their errors.
type Multi []Channel

func (m Multi) Send(ctx context.Context, p fanout.Payload) error {
	var errs []error
	for _, ch := range m {
		if err := ch.Send(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

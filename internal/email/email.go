package email

import (
	"context"
	"fmt"

	"github.com/velmostra/stagegate/internal/kafka"
)

// Sender delivers the post-payment confirmation. Delivery is best-effort;
// a failed send never affects reservation state.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.TicketEvent) error {
	fmt.Printf("send confirmation email to buyer %s: %d ticket(s) %s for event %s\n",
		event.BuyerID, event.Quantity, event.TicketNumber, event.EventID)
	return nil
}

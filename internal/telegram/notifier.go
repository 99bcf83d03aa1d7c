package telegram

import (
	"sync"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/models"
)

// Sender delivers an activity digest.
type Sender interface {
	Send(items []models.ActivityItem) error
}

// Ledger remembers which activity items were already announced.
type Ledger interface {
	FilterUnnotified(items []models.ActivityItem) ([]models.ActivityItem, error)
	MarkNotified(items []models.ActivityItem) error
}

// Notifier announces activity items the chat has not seen yet. The first
// feed it observes only seeds the ledger, so a restart does not replay history.
type Notifier struct {
	mu     sync.Mutex
	sender Sender
	ledger Ledger
	seeded bool
}

func NewNotifier(sender Sender, ledger Ledger) *Notifier {
	return &Notifier{sender: sender, ledger: ledger}
}

// Notify sends the unseen part of items, oldest first.
func (n *Notifier) Notify(items []models.ActivityItem) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fresh, err := n.ledger.FilterUnnotified(items)
	if err != nil {
		logger.Warn("Failed to filter notified activity: %v", err)
		return
	}
	if len(fresh) == 0 {
		n.seeded = true
		return
	}

	if !n.seeded {
		n.seeded = true
		if err := n.ledger.MarkNotified(fresh); err != nil {
			logger.Warn("Failed to seed notified activity: %v", err)
		}
		logger.Debug("Seeded %d existing activity items", len(fresh))
		return
	}

	ordered := make([]models.ActivityItem, len(fresh))
	for i, item := range fresh {
		ordered[len(fresh)-1-i] = item
	}

	if err := n.sender.Send(ordered); err != nil {
		logger.Error("Failed to send Telegram notification: %v", err)
		return
	}
	logger.Info("Sent Telegram notification with %d activity items", len(ordered))
	if err := n.ledger.MarkNotified(fresh); err != nil {
		logger.Warn("Failed to record notified activity: %v", err)
	}
}

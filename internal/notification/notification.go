package notification

import (
	"go.uber.org/zap"
)

// Type classifies operator notifications. ErrorOccurred is reserved for
// unexpected failures so operators can tell known trading failures from bugs.
type Type string

const (
	OrderPlaced         Type = "ORDER_PLACED"
	OrderFailed         Type = "ORDER_FAILED"
	OrderCancelled      Type = "ORDER_CANCELLED"
	TakeProfitTriggered Type = "TAKE_PROFIT_TRIGGERED"
	StopLossTriggered   Type = "STOP_LOSS_TRIGGERED"
	ErrorOccurred       Type = "ERROR_OCCURRED"
)

// Notifier delivers fire-and-forget notifications. Implementations must never
// let a delivery failure propagate back into trading logic.
type Notifier interface {
	Notify(notificationType Type, details string)
}

// LogNotifier writes notifications to the application log. It stands in for
// external delivery channels, which are out of scope for this engine.
type LogNotifier struct {
	logger  *zap.SugaredLogger
	enabled bool
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.SugaredLogger, enabled bool) *LogNotifier {
	return &LogNotifier{logger: logger, enabled: enabled}
}

// Notify logs the notification. It never fails and never blocks on I/O other
// than the logger itself.
func (n *LogNotifier) Notify(notificationType Type, details string) {
	if !n.enabled {
		return
	}
	switch notificationType {
	case OrderFailed, ErrorOccurred:
		n.logger.Warnf("[notify] %s: %s", notificationType, details)
	default:
		n.logger.Infof("[notify] %s: %s", notificationType, details)
	}
}

// NopNotifier discards all notifications. Used in tests and backtests where
// operator alerting is noise.
type NopNotifier struct{}

func (NopNotifier) Notify(Type, string) {}

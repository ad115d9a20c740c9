package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	appLog "evcal/internal/log"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod         = notificationsService + ".Notify"

	// expireMillis closes the notification after five seconds.
	expireMillis = int32(5000)
)

// DesktopNotifier posts reminders to the freedesktop notification
// server on the session bus.
type DesktopNotifier struct {
	conn    *dbus.Conn
	appName string
}

func NewDesktopNotifier(appName string) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DesktopNotifier{conn: conn, appName: appName}, nil
}

func (d *DesktopNotifier) Notify(ctx context.Context, r Reminder) error {
	obj := d.conn.Object(notificationsService, notificationsPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName,
		uint32(0),
		"appointment-soon",
		ReminderTitle,
		r.Body(),
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(1))},
		expireMillis,
	)
	if call.Err != nil {
		return fmt.Errorf("dbus notify: %w", call.Err)
	}
	return nil
}

func (d *DesktopNotifier) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// LogNotifier only logs reminders.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r Reminder) error {
	appLog.Info("reminder", "event_id", r.EventID, "body", r.Body())
	return nil
}

// NewNotifier returns a desktop notifier when a session bus is
// reachable and a LogNotifier otherwise. The close func is never nil.
func NewNotifier(appName string) (Notifier, func() error) {
	d, err := NewDesktopNotifier(appName)
	if err != nil {
		appLog.Debug("notify: desktop notifications unavailable; logging reminders", "err", err)
		return LogNotifier{}, func() error { return nil }
	}
	return d, d.Close
}

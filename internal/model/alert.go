package model

import "time"

// AlertType selects what an alert compares against its target.
type AlertType string

const (
	AlertPrice   AlertType = "price"
	AlertPercent AlertType = "percent"
)

// Condition is the direction of an alert threshold.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// TimePeriod controls when a fired alert re-arms on its own.
type TimePeriod string

const (
	PeriodOnce TimePeriod = "once" // stays fired until the user resets or edits it
	PeriodDay  TimePeriod = "day"  // re-arms at the next local midnight
	PeriodWeek TimePeriod = "week" // re-arms at the next local Monday 00:00
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelTray    Channel = "tray"
	ChannelDesktop Channel = "desktop"
)

// Notifications holds the enabled delivery channels of an alert.
type Notifications struct {
	Tray    bool `json:"tray"`
	Desktop bool `json:"desktop"`
}

// Channels lists the enabled channels in a fixed order.
func (n Notifications) Channels() []Channel {
	var out []Channel
	if n.Tray {
		out = append(out, ChannelTray)
	}
	if n.Desktop {
		out = append(out, ChannelDesktop)
	}
	return out
}

// AlertRule is a user-defined trigger condition on one instrument.
type AlertRule struct {
	ID               string        `json:"id"`
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	Type             AlertType     `json:"type"`
	Condition        Condition     `json:"condition"`
	TargetValue      float64       `json:"target_value"`
	BasePrice        float64       `json:"base_price"`
	TimePeriod       TimePeriod    `json:"time_period"`
	Notifications    Notifications `json:"notifications"`
	Triggered        bool          `json:"triggered"`
	LastTriggerPrice *float64      `json:"last_trigger_price,omitempty"`
	TriggeredAt      time.Time     `json:"triggered_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Notification is a fully formed delivery request for one channel.
type Notification struct {
	AlertID string
	Channel Channel
	Code    string
	Name    string
	Message string
	Price   float64
}

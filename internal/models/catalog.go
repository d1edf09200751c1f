package models

import (
	"fmt"
	"time"
)

// ScheduleWindow is an operating window within a day, minute resolution.
// Both bounds are "HH:mm"; a window with either bound empty is unusable.
type ScheduleWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// IsZero reports whether the window has no usable bounds.
func (w ScheduleWindow) IsZero() bool {
	return w.From == "" || w.To == ""
}

// Category carries the pickup schedule parameters for a product family.
type Category struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	WeekdayTime     ScheduleWindow `json:"weekday_time"`
	WeekendsTime    ScheduleWindow `json:"weekends_time"`
	SlotSizeMinutes int            `json:"slot_size_minutes"`
	LeadTimeMinutes int            `json:"lead_time_minutes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ScheduleKey returns the schedule signature of the category. Two categories
// with equal keys share one pickup date/time selection at checkout.
func (c *Category) ScheduleKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		c.WeekdayTime.From, c.WeekdayTime.To,
		c.WeekendsTime.From, c.WeekendsTime.To,
		c.SlotSizeMinutes, c.LeadTimeMinutes,
	)
}

// Product is a catalog entry. Stock and DailyCapacity are independent
// ceilings; nil means unbounded.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Photo         string    `json:"photo,omitempty"`
	Price         float64   `json:"price"`
	CategoryID    int64     `json:"category_id"`
	Stock         *int64    `json:"stock,omitempty"`
	DailyCapacity *int64    `json:"daily_capacity,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectiveCap returns min(dailyCapacity, stock) for a single date.
// bounded is false when neither ceiling is set.
func (p *Product) EffectiveCap() (cap int64, bounded bool) {
	switch {
	case p.DailyCapacity == nil && p.Stock == nil:
		return 0, false
	case p.DailyCapacity == nil:
		return *p.Stock, true
	case p.Stock == nil:
		return *p.DailyCapacity, true
	case *p.Stock < *p.DailyCapacity:
		return *p.Stock, true
	default:
		return *p.DailyCapacity, true
	}
}

// CartLine is a client-held cart entry. It is never persisted; the display
// fields are denormalized copies used only for rendering and grouping.
type CartLine struct {
	ProductID  int64   `json:"product_id"`
	Name       string  `json:"name"`
	Photo      string  `json:"photo,omitempty"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	CategoryID int64   `json:"category_id"`
}

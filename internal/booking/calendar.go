package booking

import (
	"fmt"
	"sync"
	"time"
)

// Calendar is the in-process appointment grid the prompt builder consults.
// One instance is seeded at startup; bookings live only for the process
// lifetime, matching the rest of the conversational state.
type Calendar struct {
	mu       sync.RWMutex
	open     time.Duration
	close    time.Duration
	slotSize time.Duration
	days     int
	booked   map[string]bool
	now      func() time.Time
}

// NewCalendar seeds a weekday grid: openHour..closeHour in slotMinutes steps
// for the next days calendar days.
func NewCalendar(openHour, closeHour, slotMinutes, days int) *Calendar {
	if openHour <= 0 || openHour >= 24 {
		openHour = 9
	}
	if closeHour <= openHour || closeHour > 24 {
		closeHour = 17
	}
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	if days <= 0 {
		days = 7
	}
	return &Calendar{
		open:     time.Duration(openHour) * time.Hour,
		close:    time.Duration(closeHour) * time.Hour,
		slotSize: time.Duration(slotMinutes) * time.Minute,
		days:     days,
		booked:   make(map[string]bool),
		now:      time.Now,
	}
}

// AvailableSlots returns up to limit open slot labels like
// "2026-08-29 10:00", skipping Sundays and already booked slots.
func (c *Calendar) AvailableSlots(limit int) []string {
	if limit <= 0 {
		limit = 6
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	day := c.now().Truncate(24 * time.Hour)
	for d := 0; d < c.days && len(out) < limit; d++ {
		date := day.AddDate(0, 0, d+1)
		if date.Weekday() == time.Sunday {
			continue
		}
		for at := c.open; at+c.slotSize <= c.close && len(out) < limit; at += c.slotSize {
			label := fmt.Sprintf("%s %02d:%02d", date.Format("2006-01-02"), int(at.Hours()), int(at.Minutes())%60)
			if c.booked[label] {
				continue
			}
			out = append(out, label)
		}
	}
	return out
}

// Book marks a slot taken. Returns false when the slot was already booked.
func (c *Calendar) Book(label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.booked[label] {
		return false
	}
	c.booked[label] = true
	return true
}

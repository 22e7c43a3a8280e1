package booking

import (
	"regexp"
	"strings"
)

// State holds the appointment slots collected so far for one conversation.
// It is mutated only by the turn holding the session's single-flight lock.
type State struct {
	CustomerName string `json:"customer_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Vehicle      string `json:"vehicle,omitempty"`
	Service      string `json:"service,omitempty"`
	Date         string `json:"date,omitempty"`
	Time         string `json:"time,omitempty"`
}

var (
	phoneRe = regexp.MustCompile(`(?:\+?\d[\d\s\-]{6,}\d)`)
	dateRe  = regexp.MustCompile(`(?i)\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:mon|tues?|wednes|thurs?|fri|satur|sun)day|tomorrow|today)\b`)
	clockRe = regexp.MustCompile(`(?i)\b(?:[01]?\d|2[0-3]):[0-5]\d\b|\b(?:[01]?\d)\s?(?:am|pm)\b`)
)

var serviceKeywords = []string{
	"oil change",
	"tire rotation",
	"tyre rotation",
	"brake",
	"inspection",
	"alignment",
	"battery",
	"diagnostic",
	"service",
	"repair",
	"mot",
}

// Observe scans a confirmed user utterance for slot values. It only fills
// empty slots; the assistant's clarification flow handles corrections.
func (s *State) Observe(utterance string) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return
	}
	lower := strings.ToLower(text)

	dateMatch := dateRe.FindString(text)
	if s.Date == "" && dateMatch != "" {
		s.Date = strings.ToLower(dateMatch)
	}
	if s.Phone == "" {
		// A numeric date also satisfies the phone pattern; scan with the date
		// removed so "2026-09-01" is never taken for a number.
		phoneText := text
		if dateMatch != "" {
			phoneText = strings.Replace(phoneText, dateMatch, " ", 1)
		}
		if m := phoneRe.FindString(phoneText); m != "" {
			s.Phone = strings.Join(strings.Fields(m), "")
		}
	}
	if s.Time == "" {
		if m := clockRe.FindString(text); m != "" {
			s.Time = strings.ToLower(strings.TrimSpace(m))
		}
	}
	if s.Service == "" {
		for _, kw := range serviceKeywords {
			if strings.Contains(lower, kw) {
				s.Service = kw
				break
			}
		}
	}
}

// Complete reports whether every slot required to book is filled.
func (s *State) Complete() bool {
	return s.Service != "" && s.Date != "" && s.Time != "" && s.Phone != ""
}

// Missing lists the slot names still needed, in ask order.
func (s *State) Missing() []string {
	var out []string
	if s.Service == "" {
		out = append(out, "service")
	}
	if s.Date == "" {
		out = append(out, "date")
	}
	if s.Time == "" {
		out = append(out, "time")
	}
	if s.Phone == "" {
		out = append(out, "phone")
	}
	return out
}

package booking

import (
	"strings"
)

// Exchange is one completed (user, assistant) turn used for prompt context.
type Exchange struct {
	User      string
	Assistant string
}

const historyPromptLimit = 8

// BuildSystemPrompt assembles the garage assistant instructions plus the
// current booking progress and availability for the turn generator.
func BuildSystemPrompt(state State, history []Exchange, calendar *Calendar) string {
	var b strings.Builder

	b.WriteString("You are the voice receptionist for a car garage. ")
	b.WriteString("Help the caller book a service appointment. ")
	b.WriteString("Keep replies short and conversational: one or two spoken sentences, no lists, no markdown. ")
	b.WriteString("Collect, one at a time: the service needed, a date, a time, and a contact phone number. ")
	b.WriteString("Confirm the full booking back to the caller once everything is collected.\n\n")

	b.WriteString("Booking so far:\n")
	writeSlot(&b, "service", state.Service)
	writeSlot(&b, "date", state.Date)
	writeSlot(&b, "time", state.Time)
	writeSlot(&b, "phone", state.Phone)
	writeSlot(&b, "name", state.CustomerName)
	writeSlot(&b, "vehicle", state.Vehicle)

	if missing := state.Missing(); len(missing) > 0 {
		b.WriteString("\nStill needed: ")
		b.WriteString(strings.Join(missing, ", "))
		b.WriteString(". Ask for the first missing item next.\n")
	} else {
		b.WriteString("\nAll details collected. Confirm the appointment and close the call politely.\n")
	}

	if calendar != nil {
		if slots := calendar.AvailableSlots(6); len(slots) > 0 {
			b.WriteString("\nOpen slots: ")
			b.WriteString(strings.Join(slots, "; "))
			b.WriteString("\n")
		}
	}

	if len(history) > 0 {
		start := 0
		if len(history) > historyPromptLimit {
			start = len(history) - historyPromptLimit
		}
		b.WriteString("\nConversation so far:\n")
		for _, ex := range history[start:] {
			b.WriteString("Caller: ")
			b.WriteString(ex.User)
			b.WriteString("\nAssistant: ")
			b.WriteString(ex.Assistant)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeSlot(b *strings.Builder, name, value string) {
	b.WriteString("- ")
	b.WriteString(name)
	b.WriteString(": ")
	if strings.TrimSpace(value) == "" {
		b.WriteString("(not set)")
	} else {
		b.WriteString(value)
	}
	b.WriteString("\n")
}

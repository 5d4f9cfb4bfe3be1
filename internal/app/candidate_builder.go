package app

import (
	"strings"

	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"

	"github.com/sirupsen/logrus"
)

// Field slot positions; slot n is configured by MESSAGE_FIELD_n.
const (
	slotName = iota
	slotAmount
	slotDueDate
	slotPlan
	slotDueDateOnly
)

// CandidateBuilder turns classified customers into dispatchable candidates.
type CandidateBuilder struct {
	slots   []string
	flowIDs map[message.TemplateKind]int
	logger  *logrus.Entry
}

// NewCandidateBuilder takes the contact field names for each slot in order;
// an empty name disables the slot.
func NewCandidateBuilder(slots []string, flowIDs map[message.TemplateKind]int, logger *logrus.Entry) *CandidateBuilder {
	return &CandidateBuilder{slots: slots, flowIDs: flowIDs, logger: logger}
}

// ForAccount builds the candidate for an eligible receivable. It reports
// false when the customer has no usable phone or the kind has no flow.
func (b *CandidateBuilder) ForAccount(user customer.Record, acc receivable.Account, kind message.TemplateKind) (message.Candidate, bool) {
	c, ok := b.base(user, kind)
	if !ok {
		return message.Candidate{}, false
	}
	b.set(&c, slotAmount, acc.Amount)
	b.set(&c, slotDueDate, acc.DueDate)
	b.set(&c, slotPlan, acc.Description)
	b.set(&c, slotDueDateOnly, acc.DueDateOnly())
	return c, true
}

// ForBirthday builds the birthday greeting candidate.
func (b *CandidateBuilder) ForBirthday(user customer.Record) (message.Candidate, bool) {
	return b.base(user, message.KindBirthday)
}

func (b *CandidateBuilder) base(user customer.Record, kind message.TemplateKind) (message.Candidate, bool) {
	phone := SanitizePhone(user.Phone)
	if phone == "" {
		b.logger.WithFields(logrus.Fields{"customer_id": user.ID, "kind": kind}).Debug("Customer has no usable phone")
		return message.Candidate{}, false
	}

	flowID := b.flowIDs[kind]
	if flowID <= 0 {
		b.logger.WithField("kind", kind).Warn("Flow ID not configured")
		return message.Candidate{}, false
	}

	c := message.Candidate{
		Kind:          kind,
		Phone:         phone,
		FirstName:     user.Name,
		FieldMappings: []message.Field{},
		FlowID:        flowID,
	}
	b.set(&c, slotName, user.Name)
	return c, true
}

func (b *CandidateBuilder) set(c *message.Candidate, slot int, value string) {
	if slot >= len(b.slots) || b.slots[slot] == "" || value == "" {
		return
	}
	c.SetField(b.slots[slot], value)
}

// SanitizePhone keeps only digits, plus a '+' when the number starts with one.
func SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits != "" && strings.HasPrefix(phone, "+") {
		return "+" + digits
	}
	return digits
}

package message

import "context"

// TemplateKind selects the notification template (and so the flow id).
type TemplateKind string

const (
	KindDueToday     TemplateKind = "boleto_vencendo_hoje"
	KindDueIn3Days   TemplateKind = "boleto_vencendo_3_dias"
	KindOverdue3Days TemplateKind = "boleto_vencido_3_dias"
	KindOverdue5Days TemplateKind = "boleto_vencido_5_dias"
	KindOverdue30Day TemplateKind = "boleto_vencido_30_dias"
	KindBirthday     TemplateKind = "aniversariante"
)

// AllKinds lists every template kind in reporting order.
func AllKinds() []TemplateKind {
	return []TemplateKind{KindDueToday, KindDueIn3Days, KindOverdue3Days, KindOverdue5Days, KindOverdue30Day, KindBirthday}
}

// Field is one custom-field assignment on the messaging contact.
type Field struct {
	Name  string `json:"field_name"`
	Value string `json:"value"`
}

// Candidate is a ready-to-send notification. Phone is never empty and
// FlowID is never zero.
type Candidate struct {
	Kind          TemplateKind `json:"kind"`
	Phone         string       `json:"phone"`
	FirstName     string       `json:"first_name"`
	FieldMappings []Field      `json:"field_mappings"`
	FlowID        int          `json:"flow_id"`
}

// SetField assigns name=value, replacing an earlier assignment of the same name.
func (c *Candidate) SetField(name, value string) {
	for i := range c.FieldMappings {
		if c.FieldMappings[i].Name == name {
			c.FieldMappings[i].Value = value
			return
		}
	}
	c.FieldMappings = append(c.FieldMappings, Field{Name: name, Value: value})
}

// BatchResult summarizes one dispatch batch; SentByKind counts only
// candidates whose own send succeeded.
type BatchResult struct {
	Sent       int                  `json:"sent"`
	Failed     int                  `json:"failed"`
	Total      int                  `json:"total"`
	SentByKind map[TemplateKind]int `json:"sent_by_kind"`
}

// Dispatcher delivers candidates to the messaging service.
type Dispatcher interface {
	SendBatch(ctx context.Context, candidates []Candidate) BatchResult
}

package app

import (
	"testing"

	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"

	"github.com/stretchr/testify/assert"
)

var builderFlows = map[message.TemplateKind]int{
	message.KindDueToday: 11,
	message.KindBirthday: 66,
}

func TestSanitizePhone(t *testing.T) {
	assert.Equal(t, "+5511988887777", SanitizePhone("+55 (11) 98888-7777"))
	assert.Equal(t, "", SanitizePhone("sem telefone"))
	assert.Equal(t, "", SanitizePhone(""))
	assert.Equal(t, "119991", SanitizePhone("11 9+99-1"))
	assert.Equal(t, "+5511999", SanitizePhone(" +55+11 999"))
	assert.Equal(t, "", SanitizePhone("+"))
}

func TestCandidateBuilder_ForAccount(t *testing.T) {
	b := NewCandidateBuilder([]string{"nome", "valor", "vencimento", "plano", "data_venc"}, builderFlows, testLogger())
	user := customer.Record{ID: "1", Name: "Ana Souza", Phone: "(11) 98888-7777"}
	acc := receivable.Account{Amount: "149.90", DueDate: "2024-03-10T07:09:43", Description: "Plano Anual"}

	c, ok := b.ForAccount(user, acc, message.KindDueToday)
	assert.True(t, ok)
	assert.Equal(t, message.Candidate{
		Kind:      message.KindDueToday,
		Phone:     "11988887777",
		FirstName: "Ana Souza",
		FieldMappings: []message.Field{
			{Name: "nome", Value: "Ana Souza"},
			{Name: "valor", Value: "149.90"},
			{Name: "vencimento", Value: "2024-03-10T07:09:43"},
			{Name: "plano", Value: "Plano Anual"},
			{Name: "data_venc", Value: "2024-03-10"},
		},
		FlowID: 11,
	}, c)
}

func TestCandidateBuilder_SkipsEmptySlotsAndValues(t *testing.T) {
	b := NewCandidateBuilder([]string{"nome", "", "vencimento", "plano", ""}, builderFlows, testLogger())
	user := customer.Record{ID: "1", Name: "Ana", Phone: "11988887777"}

	c, ok := b.ForAccount(user, receivable.Account{Amount: "10", DueDate: "2024-03-10"}, message.KindDueToday)
	assert.True(t, ok)
	assert.Equal(t, []message.Field{
		{Name: "nome", Value: "Ana"},
		{Name: "vencimento", Value: "2024-03-10"},
	}, c.FieldMappings)
}

func TestCandidateBuilder_Rejections(t *testing.T) {
	b := NewCandidateBuilder([]string{"nome"}, builderFlows, testLogger())

	_, ok := b.ForAccount(customer.Record{ID: "1", Name: "Ana", Phone: "n/a"}, receivable.Account{}, message.KindDueToday)
	assert.False(t, ok, "no usable phone")

	_, ok = b.ForAccount(customer.Record{ID: "1", Name: "Ana", Phone: "11988887777"}, receivable.Account{}, message.KindOverdue5Days)
	assert.False(t, ok, "flow id not configured")

	negative := NewCandidateBuilder([]string{"nome"}, map[message.TemplateKind]int{message.KindBirthday: -7}, testLogger())
	_, ok = negative.ForBirthday(customer.Record{ID: "1", Name: "Ana", Phone: "11988887777"})
	assert.False(t, ok, "flow id must be positive")
}

func TestCandidateBuilder_ForBirthday(t *testing.T) {
	b := NewCandidateBuilder([]string{"nome", "valor"}, builderFlows, testLogger())

	c, ok := b.ForBirthday(customer.Record{ID: "9", Name: "Carla", Phone: "+55 21 97777-6666"})
	assert.True(t, ok)
	assert.Equal(t, message.KindBirthday, c.Kind)
	assert.Equal(t, "+5521977776666", c.Phone)
	assert.Equal(t, 66, c.FlowID)
	assert.Equal(t, []message.Field{{Name: "nome", Value: "Carla"}}, c.FieldMappings)
}

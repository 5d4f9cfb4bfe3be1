package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classifierRoster = []customer.Record{
	{ID: "1", Name: "Ana", Phone: "11988887777"},
	{ID: "2", Name: "Bruno", Phone: "21977776666"},
}

func TestClassifier_Classify(t *testing.T) {
	src := &windowSource{byWindow: map[receivable.WindowName][]alias.Record{
		receivable.WindowDueToday: {
			{"CodigoCliente": json.Number("1"), "Valor": json.Number("149.90"), "Status": "Aberto", "DataVencimento": "2024-03-10T00:00:00", "descricao": "Plano Mensal"},
			{"clienteId": "2", "valor": "50.10", "status": "Pago"},
			{"IdCliente": "99", "Valor": "10", "Status": "Aberto"},
			{"Valor": "5"},
		},
		receivable.WindowOverdue30Days: {
			{"codigoCliente": "2", "Status": "EmAndamento", "Valor": "80", "receberOrigem": []any{map[string]any{"codigoOrigem": "A-1", "origem": "Contrato"}}},
		},
	}}
	c := NewClassifier(src, receivable.NewStatusSet("Aberto", "EmAndamento"), testLogger())
	today := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	results, err := c.Classify(context.Background(), today, classifierRoster)
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.Len(t, src.calls, 5)

	byName := make(map[receivable.WindowName]WindowResult)
	for _, r := range results {
		byName[r.Window.Name] = r
	}

	hoje := byName[receivable.WindowDueToday]
	assert.Equal(t, "2024-03-10T00:00:00", hoje.Summary.Start)
	assert.Equal(t, "2024-03-10T23:59:59", hoje.Summary.End)
	assert.Equal(t, 4, hoje.Summary.Total)
	assert.Equal(t, 2, hoje.Summary.WithUserInfo)
	assert.Equal(t, 1, hoje.Summary.Eligible)
	assert.True(t, decimal.RequireFromString("215").Equal(hoje.Summary.AmountTotal), hoje.Summary.AmountTotal.String())
	require.Len(t, hoje.Summary.Accounts, 4, "unmatched receivables stay in the report")

	assert.Nil(t, hoje.Summary.Accounts[3].CustomerID)
	require.NotNil(t, hoje.Summary.Accounts[2].CustomerID)
	assert.Equal(t, "99", *hoje.Summary.Accounts[2].CustomerID)
	assert.Nil(t, hoje.Summary.Accounts[2].User)
	assert.False(t, hoje.Summary.Accounts[1].Eligible, "status outside the allow-list")

	require.Len(t, hoje.Eligible, 1)
	assert.Equal(t, EligibleAccount{
		Kind:     message.KindDueToday,
		Customer: classifierRoster[0],
		Account: receivable.Account{
			Amount:      "149.90",
			DueDate:     "2024-03-10T00:00:00",
			Status:      "Aberto",
			Description: "Plano Mensal",
		},
	}, hoje.Eligible[0])

	overdue := byName[receivable.WindowOverdue30Days]
	assert.Equal(t, "2024-02-09T00:00:00", overdue.Summary.Start)
	require.Len(t, overdue.Eligible, 1)
	assert.Equal(t, message.KindOverdue30Day, overdue.Eligible[0].Kind)
	assert.Equal(t, "A-1", overdue.Eligible[0].Account.OriginCode)
	assert.Equal(t, "Contrato", overdue.Eligible[0].Account.Origin)

	empty := byName[receivable.WindowDueIn3Days]
	assert.Zero(t, empty.Summary.Total)
	assert.NotNil(t, empty.Summary.Accounts)
	assert.Empty(t, empty.Eligible)
}

func TestClassifier_Classify_WindowErrorAborts(t *testing.T) {
	fetchErr := errors.New("status 503")
	src := &windowSource{failOn: receivable.WindowOverdue3Days, err: fetchErr}
	c := NewClassifier(src, receivable.NewStatusSet("Aberto"), testLogger())

	results, err := c.Classify(context.Background(), time.Now(), classifierRoster)
	require.ErrorIs(t, err, fetchErr)
	assert.Nil(t, results)
	assert.Equal(t, receivable.WindowOverdue3Days, src.calls[len(src.calls)-1].Name, "no window fetched after the failure")
}

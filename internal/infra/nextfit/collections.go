package nextfit

import (
	"context"
	"net/url"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/receivable"
)

const (
	CustomersPath   = "/Pessoa/GetClientes"
	ReceivablesPath = "/ContaReceber"
)

var (
	customerListKeys   = []string{"items", "data", "usuarios", "clientes"}
	receivableListKeys = []string{"data", "items", "contas"}
)

// EachCustomerPage walks the customer collection, pausing the configured
// inter-page delay after every page.
func (c *Client) EachCustomerPage(ctx context.Context, fn PageFunc) error {
	return c.Each(ctx, Query{
		Path:      CustomersPath,
		ListKeys:  customerListKeys,
		PageDelay: c.pageDelay,
	}, fn)
}

// FetchReceivables returns every receivable due inside the window.
func (c *Client) FetchReceivables(ctx context.Context, w receivable.Window) ([]alias.Record, error) {
	return c.FetchAll(ctx, Query{
		Path: ReceivablesPath,
		Params: url.Values{
			"DataVencimentoInicio": {w.StartParam()},
			"DataVencimentoFim":    {w.EndParam()},
		},
		ListKeys: receivableListKeys,
	})
}

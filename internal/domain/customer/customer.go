package customer

import (
	"context"
	"strings"
	"time"

	"billing_notifier/internal/domain/alias"
)

// Record is a normalized roster entry. JSON names match the persisted
// roster file consumed by other tooling.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"nome"`
	Phone     string `json:"telefone"`
	BirthDate string `json:"data_nascimento"`
}

// Snapshot is the persisted roster document.
type Snapshot struct {
	LastUpdated time.Time `json:"last_updated"`
	TotalUsers  int       `json:"total_users"`
	Users       []Record  `json:"users"`
	Error       string    `json:"error,omitempty"`
	Partial     bool      `json:"partial,omitempty"`
}

// NewSnapshot keeps TotalUsers consistent with Users.
func NewSnapshot(now time.Time, users []Record) *Snapshot {
	if users == nil {
		users = []Record{}
	}
	return &Snapshot{LastUpdated: now, TotalUsers: len(users), Users: users}
}

// Store persists roster snapshots. Implementations write each document in
// one call; the backup slot only ever holds partial snapshots.
type Store interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	SaveBackup(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Remove(ctx context.Context) error
}

var (
	idFields        = alias.Keys("id", "Id", "codigoCliente")
	nameFields      = alias.Keys("nome", "Nome")
	areaCodeFields  = alias.Keys("dddFone", "ddd")
	numberFields    = alias.Keys("fone", "telefone", "Telefone")
	birthDateFields = alias.Keys("dataNascimento", "DataNascimento", "data_nascimento")
)

// FromRaw normalizes a raw customer object. It reports false when the
// object has no identifier; such records never enter the roster.
func FromRaw(raw alias.Record) (Record, bool) {
	id := strings.TrimSpace(idFields.String(raw))
	if id == "" {
		return Record{}, false
	}
	return Record{
		ID:        id,
		Name:      nameFields.String(raw),
		Phone:     joinPhone(areaCodeFields.String(raw), numberFields.String(raw)),
		BirthDate: birthDateFields.String(raw),
	}, true
}

func joinPhone(areaCode, number string) string {
	switch {
	case areaCode != "" && number != "":
		return strings.TrimSpace(areaCode + number)
	case number != "":
		return strings.TrimSpace(number)
	default:
		return strings.TrimSpace(areaCode)
	}
}

// Index maps roster entries by identifier.
func Index(records []Record) map[string]Record {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return byID
}

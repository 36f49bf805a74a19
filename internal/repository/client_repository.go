package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// ClientRepo lists members and dependents together.
type ClientRepo struct {
	db *sql.DB
}

func NewClientRepo(db *sql.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

var clientDef = listDef{
	columns: "c.kind, c.id, c.name, c.active, c.birth_date, c.sex, c.registration_number, c.cpf, c.phone, c.active_dependents, c.member_id",
	from: `(
		SELECT 'MEMBER' AS kind, m.id, m.name, m.active, m.birth_date, m.sex, m.registration_number,
			m.cpf, m.phone,
			(SELECT COUNT(*) FROM dependents d WHERE d.member_id = m.id AND d.active) AS active_dependents,
			0 AS member_id
		FROM members m
		UNION ALL
		SELECT 'DEPENDENT', d.id, d.name, d.active, d.birth_date, d.sex, d.registration_number,
			'', '', 0, d.member_id
		FROM dependents d
	) c`,
	idColumn: "c.id",
	search:   []string{"c.name", "c.registration_number", "c.cpf"},
	sorts: map[string]string{
		"id": "c.id", "name": "c.name", "kind": "c.kind", "active": "c.active",
	},
	defaultSort: "c.name",
}

func scanClientRef(s scanner) (model.ClientRef, error) {
	var c model.ClientRef
	err := s.Scan(&c.Kind, &c.ID, &c.Name, &c.Active, &c.BirthDate, &c.Sex, &c.RegistrationNumber,
		&c.CPF, &c.Phone, &c.ActiveDependents, &c.MemberID)
	c.Key = model.ClientKey(c.Kind, c.ID)
	return c, err
}

// List returns one page of the union of members and dependents.  Status
// "active" or "inactive" filters on the active flag.
func (r *ClientRepo) List(ctx context.Context, q ListQuery) (model.Page[model.ClientRef], error) {
	def := clientDef
	switch q.Normalize().Status {
	case "active":
		def.where = []string{"c.active"}
	case "inactive":
		def.where = []string{"NOT c.active"}
	}
	return listPage(ctx, r.db, q, def, scanClientRef)
}

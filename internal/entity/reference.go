package entity

import "github.com/uptrace/bun"

// Customer is the organisation renting a list.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}

// ListDatabase is a list provider's source database.
type ListDatabase struct {
	bun.BaseModel `bun:"table:databases,alias:d"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	ListCode string `bun:"list_code,notnull" json:"list_code"`
	Name     string `bun:"name,notnull" json:"name"`
}

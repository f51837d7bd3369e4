package entity

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Order is a list rental work order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	CustomerID      int64      `bun:"customer_id,notnull" json:"customer_id"`
	DatabaseID      int64      `bun:"database_id,notnull" json:"database_id"`
	ExternalRef     *string    `bun:"external_ref" json:"external_ref"`
	ListDescription string     `bun:"list_description,type:text,notnull" json:"list_description"`
	DesiredQuantity int64      `bun:"desired_quantity,notnull" json:"desired_quantity"`
	ActualQuantity  *int64     `bun:"actual_quantity" json:"actual_quantity"`
	Status          Status     `bun:"status,type:varchar(20),notnull" json:"status"`
	CreatedAt       time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	ClosedAt        *time.Time `bun:"closed_at" json:"closed_at"`

	Customer *Customer     `bun:"rel:belongs-to,join:customer_id=id" json:"customer,omitempty"`
	Database *ListDatabase `bun:"rel:belongs-to,join:database_id=id" json:"database,omitempty"`
}

// UnderQuantity reports whether the delivered count fell short of the request.
// It is a display warning only.
func (o *Order) UnderQuantity() bool {
	return o.ActualQuantity != nil && *o.ActualQuantity < o.DesiredQuantity
}

// ApplyTransition moves the order to target and stamps the lifecycle timestamps.
// The receiver is left untouched when the move is not allowed.
func (o *Order) ApplyTransition(target Status, now time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot move order from %s to %s", o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now
	if target.Closing() {
		closedAt := now
		o.ClosedAt = &closedAt
	} else {
		o.ClosedAt = nil
	}
	return nil
}

// CustomerName returns the joined customer name, if loaded.
func (o *Order) CustomerName() string {
	if o.Customer == nil {
		return ""
	}
	return o.Customer.Name
}

// DatabaseName returns the joined list provider name, if loaded.
func (o *Order) DatabaseName() string {
	if o.Database == nil {
		return ""
	}
	return o.Database.Name
}

// ListCode returns the joined list provider code, if loaded.
func (o *Order) ListCode() string {
	if o.Database == nil {
		return ""
	}
	return o.Database.ListCode
}

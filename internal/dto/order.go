package dto

import (
	"time"

	"github.com/Additional-Code/workorders/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64                `json:"id"`
	CustomerID      int64                `json:"customer_id"`
	CustomerName    string               `json:"customer_name"`
	DatabaseID      int64                `json:"database_id"`
	DatabaseName    string               `json:"database_name"`
	ListCode        string               `json:"list_code"`
	ExternalRef     *string              `json:"external_ref"`
	ListDescription string               `json:"list_description"`
	DesiredQuantity int64                `json:"desired_quantity"`
	ActualQuantity  *int64               `json:"actual_quantity"`
	UnderQuantity   bool                 `json:"under_quantity"`
	Status          string               `json:"status"`
	StatusLabel     string               `json:"status_label"`
	Transitions     []TransitionResponse `json:"transitions"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ClosedAt        *time.Time           `json:"closed_at"`
}

// TransitionResponse is a status move offered for an order.
type TransitionResponse struct {
	To     string `json:"to"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// StatusResponse describes a lifecycle state and where it can move.
type StatusResponse struct {
	Value       string               `json:"value"`
	Label       string               `json:"label"`
	Closing     bool                 `json:"closing"`
	Transitions []TransitionResponse `json:"transitions"`
}

// CustomerResponse is a selectable customer.
type CustomerResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DatabaseResponse is a selectable list provider database.
type DatabaseResponse struct {
	ID       int64  `json:"id"`
	ListCode string `json:"list_code"`
	Name     string `json:"name"`
}

// FromOrder maps an order entity to its transport shape.
func FromOrder(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		CustomerName:    o.CustomerName(),
		DatabaseID:      o.DatabaseID,
		DatabaseName:    o.DatabaseName(),
		ListCode:        o.ListCode(),
		ExternalRef:     o.ExternalRef,
		ListDescription: o.ListDescription,
		DesiredQuantity: o.DesiredQuantity,
		ActualQuantity:  o.ActualQuantity,
		UnderQuantity:   o.UnderQuantity(),
		Status:          o.Status.String(),
		StatusLabel:     o.Status.Label(),
		Transitions:     FromTransitions(o.Status.Transitions()),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		ClosedAt:        o.ClosedAt,
	}
}

// FromOrders maps a slice of orders, preserving order.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}

// FromTransitions maps allowed moves.
func FromTransitions(ts []entity.Transition) []TransitionResponse {
	out := make([]TransitionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransitionResponse{To: t.To.String(), Label: t.To.Label(), Action: t.Action})
	}
	return out
}

// FromStatuses describes every lifecycle state in workflow order.
func FromStatuses(statuses []entity.Status) []StatusResponse {
	out := make([]StatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusResponse{
			Value:       s.String(),
			Label:       s.Label(),
			Closing:     s.Closing(),
			Transitions: FromTransitions(s.Transitions()),
		})
	}
	return out
}

// FromCustomers maps customers.
func FromCustomers(customers []entity.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, CustomerResponse{ID: c.ID, Name: c.Name})
	}
	return out
}

// FromDatabases maps list provider databases.
func FromDatabases(databases []entity.ListDatabase) []DatabaseResponse {
	out := make([]DatabaseResponse, 0, len(databases))
	for _, d := range databases {
		out = append(out, DatabaseResponse{ID: d.ID, ListCode: d.ListCode, Name: d.Name})
	}
	return out
}

package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/workorders/internal/transport/http/order"
	referencetransport "github.com/Additional-Code/workorders/internal/transport/http/reference"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	referencetransport.Module,
)

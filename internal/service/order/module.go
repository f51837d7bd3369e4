package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/service/reference"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *reference.Service) ReferenceData { return s }),
)

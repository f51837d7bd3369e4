// Command api serves the work order HTTP and gRPC endpoints without the CLI.
package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/app"
)

func main() {
	fx.New(app.Module, app.FxLogger).Run()
}

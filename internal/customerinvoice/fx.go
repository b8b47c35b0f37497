package customerinvoice

import (
	"github.com/gaihekinavi/platform/internal/customerinvoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customerinvoice.service",
	fx.Provide(service.New),
)

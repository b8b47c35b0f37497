package partner

import (
	"github.com/gaihekinavi/platform/internal/partner/service"
	"go.uber.org/fx"
)

var Module = fx.Module("partner.service",
	fx.Provide(service.New),
)

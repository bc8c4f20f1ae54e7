package http

import (
	"go.uber.org/fx"

	earningstransport "github.com/bakehouse-app/bakehouse/internal/transport/http/earnings"
	ordertransport "github.com/bakehouse-app/bakehouse/internal/transport/http/order"
	teamtransport "github.com/bakehouse-app/bakehouse/internal/transport/http/team"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	teamtransport.Module,
	earningstransport.Module,
)

package app

import (
	"go.uber.org/fx"

	"github.com/bakehouse-app/bakehouse/internal/cache"
	"github.com/bakehouse-app/bakehouse/internal/config"
	"github.com/bakehouse-app/bakehouse/internal/database"
	"github.com/bakehouse-app/bakehouse/internal/logger"
	"github.com/bakehouse-app/bakehouse/internal/messaging"
	"github.com/bakehouse-app/bakehouse/internal/observability"
	repositorychat "github.com/bakehouse-app/bakehouse/internal/repository/chat"
	repositoryearnings "github.com/bakehouse-app/bakehouse/internal/repository/earnings"
	repositoryorder "github.com/bakehouse-app/bakehouse/internal/repository/order"
	repositoryteam "github.com/bakehouse-app/bakehouse/internal/repository/team"
	repositoryuser "github.com/bakehouse-app/bakehouse/internal/repository/user"
	grpcserver "github.com/bakehouse-app/bakehouse/internal/server/grpc"
	httpserver "github.com/bakehouse-app/bakehouse/internal/server/http"
	serviceassignment "github.com/bakehouse-app/bakehouse/internal/service/assignment"
	servicechat "github.com/bakehouse-app/bakehouse/internal/service/chat"
	serviceorder "github.com/bakehouse-app/bakehouse/internal/service/order"
	servicepayout "github.com/bakehouse-app/bakehouse/internal/service/payout"
	serviceteam "github.com/bakehouse-app/bakehouse/internal/service/team"
	transporthttp "github.com/bakehouse-app/bakehouse/internal/transport/http"
	"github.com/bakehouse-app/bakehouse/internal/worker"
	workerchat "github.com/bakehouse-app/bakehouse/internal/worker/chat"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositoryuser.Module,
	repositoryteam.Module,
	repositoryearnings.Module,
	repositorychat.Module,
	servicechat.Module,
	servicepayout.Module,
	serviceorder.Module,
	serviceassignment.Module,
	serviceteam.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerchat.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP

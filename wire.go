//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"chatsync_server/config"
	"chatsync_server/controllers"
	"chatsync_server/metrics"
	"chatsync_server/routes"
	"chatsync_server/services"

	"github.com/google/wire"
)

var InfraSet = wire.NewSet(ProvideLogger, ProvideAWSConfig, ProvideFeed, ProvideStore, ProvideIDs, metrics.New)

var ServiceSet = wire.NewSet(
	ProvideMediaService,
	wire.Bind(new(services.Uploader), new(*services.MediaService)),
	services.NewUserService,
	services.NewPresenceService,
	ProvideChatService,
	services.NewCallService,
	ProvideAuthService,
)

var TransportSet = wire.NewSet(
	controllers.NewAuthController,
	controllers.NewUserController,
	controllers.NewChatController,
	ProvideCallController,
	controllers.NewMediaController,
	controllers.NewAuthMiddleware,
	routes.NewRouter,
	ProvideSocketServer,
	ProvideApp,
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(InfraSet, ServiceSet, TransportSet)
	return nil, nil, nil
}

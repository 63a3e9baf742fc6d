package main

import (
	"context"
	"log"

	"tutor-booking/cmd"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"
	"tutor-booking/internal/scheduler"
	"tutor-booking/internal/wire"
	"tutor-booking/pkg/database"
	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	ctx := context.Background()

	migrator, err := database.NewMigrator(db, config.Database.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to init migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	logger.Info("Migrations applied")

	repos := repository.NewRepository(db, logger)

	payments := gateway.NewPaymentGateway(config.Payment)
	meetings := gateway.NewMeetingProvider(config.Meeting)

	app := wire.Wiring(repos, payments, meetings, config, logger)

	if config.Scheduler.Enabled {
		runner := scheduler.NewScheduler(
			app.Service.Payment,
			config.Scheduler.CaptureInterval,
			config.Scheduler.RetryInterval,
			logger,
		)
		runner.Start(ctx)
		defer runner.Stop()
	}

	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port)
}

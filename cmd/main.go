package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"routebudget-telemetry/internal/api"
	"routebudget-telemetry/internal/cache"
	"routebudget-telemetry/internal/config"
	"routebudget-telemetry/internal/dispatch"
	"routebudget-telemetry/internal/geoloc"
	"routebudget-telemetry/internal/gis/geocode"
	"routebudget-telemetry/internal/gis/routing"
	"routebudget-telemetry/internal/location"
	"routebudget-telemetry/internal/session"
	"routebudget-telemetry/internal/suggest"
	"routebudget-telemetry/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
	store := cache.NewRedisStore(redisClient)

	geocoder := geocode.NewClient(conf.GeocodeBaseURL, conf.GeocodeCountry)
	router := routing.NewClient(conf.DirectionsURL)
	tripAPI := dispatch.NewClient(conf.TripUpdateURL)
	suggestions := suggest.NewService(geocoder, store, logger)

	fallback := location.Position{Latitude: conf.DefaultLatitude, Longitude: conf.DefaultLongitude}
	// The platform fix source plugs in here; the simulated source
	// serves development and headless deployments.
	source := &geoloc.SimSource{Base: fallback}
	provider := geoloc.NewProvider(source, store, fallback, logger)

	var controller *session.Controller
	channel := telemetry.NewChannel(conf.DispatchWSURL, conf.CabNumber,
		func(ctx context.Context) (location.Position, telemetry.RouteContext, bool) {
			return controller.TelemetryPosition(ctx)
		}, logger)

	controller = session.NewController(session.Deps{
		Provider:    provider,
		Channel:     channel,
		Geocoder:    geocoder,
		Router:      router,
		TripAPI:     tripAPI,
		Suggestions: suggestions,
		Trips:       store,
		Logger:      logger,
		DriverID:    conf.DriverID,
		CabNumber:   conf.CabNumber,
	})

	if err := controller.Start(ctx); err != nil {
		return err
	}
	defer controller.Teardown()

	server := api.NewServer(conf, controller, suggestions, channel, geocoder, store, logger)
	return server.Start(ctx)
}

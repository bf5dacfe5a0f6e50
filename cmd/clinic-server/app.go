package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/clinic/internal/config"
	"github.com/carebridge/clinic/internal/domain/appointment"
	"github.com/carebridge/clinic/internal/domain/condition"
	"github.com/carebridge/clinic/internal/domain/healthmetric"
	"github.com/carebridge/clinic/internal/domain/identity"
	"github.com/carebridge/clinic/internal/domain/notification"
	"github.com/carebridge/clinic/internal/domain/prescription"
	"github.com/carebridge/clinic/internal/domain/profile"
	"github.com/carebridge/clinic/internal/domain/record"
	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/blobstore"
	"github.com/carebridge/clinic/internal/platform/db"
)

// app holds the domain services shared by the server and the maintenance
// commands.
type app struct {
	identity     *identity.Service
	profile      *profile.Service
	appointment  *appointment.Service
	prescription *prescription.Service
	record       *record.Service
	healthmetric *healthmetric.Service
	condition    *condition.Service
	notification *notification.Service
}

func newApp(pool *pgxpool.Pool, blobs blobstore.Store, tokens *auth.TokenIssuer, cfg *config.Config, logger zerolog.Logger) *app {
	tx := db.NewTransactor(pool)

	users := identity.NewUserRepoPG(pool)
	profileSvc := profile.NewService(profile.NewRepoPG(pool), users, tx, logger)
	identitySvc := identity.NewService(users, profileSvc, tokens, tx, logger)

	return &app{
		identity:     identitySvc,
		profile:      profileSvc,
		appointment:  appointment.NewService(appointment.NewRepoPG(pool), profileSvc, logger),
		prescription: prescription.NewService(prescription.NewRepoPG(pool), profileSvc, blobs, cfg, tx, logger),
		record:       record.NewService(record.NewRepoPG(pool), blobs, cfg, tx, logger),
		healthmetric: healthmetric.NewService(healthmetric.NewRepoPG(pool), profileSvc, logger),
		condition:    condition.NewService(condition.NewRepoPG(pool), profileSvc, logger),
		notification: notification.NewService(notification.NewRepoPG(pool), notification.NewTemplates(), logger),
	}
}

func (a *app) registerRoutes(api *echo.Group, revocations auth.RevocationStore, tokenTTL time.Duration, authLimit echo.MiddlewareFunc) {
	identity.NewHandler(a.identity, revocations).RegisterRoutes(api, authLimit)
	auth.RegisterRevocationRoutes(api, revocations, tokenTTL)
	profile.NewHandler(a.profile).RegisterRoutes(api)
	appointment.NewHandler(a.appointment).RegisterRoutes(api)
	prescription.NewHandler(a.prescription).RegisterRoutes(api)
	record.NewHandler(a.record).RegisterRoutes(api)
	healthmetric.NewHandler(a.healthmetric).RegisterRoutes(api)
	condition.NewHandler(a.condition).RegisterRoutes(api)
	notification.NewHandler(a.notification).RegisterRoutes(api)
}

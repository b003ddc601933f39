package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-service/internal/api/http/handlers"
	"github.com/repairdesk/repair-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Equipment      *handlers.EquipmentHandler
	Repairs        *handlers.RepairHandler
	Attachments    *handlers.AttachmentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/technicians", auth.RequireStaff(), cfg.Users.Technicians)
	users.Get("/", auth.RequireAdmin(), cfg.Users.List)
	users.Get("/:id", auth.RequireAdmin(), cfg.Users.Get)
	users.Put("/:id/role", auth.RequireAdmin(), cfg.Users.UpdateRole)

	equipment := api.Group("/equipment", cfg.AuthMiddleware.Handle)
	equipment.Get("/device-types", cfg.Equipment.DeviceTypes)
	equipment.Get("/departments", cfg.Equipment.Departments)
	equipment.Get("/", cfg.Equipment.List)
	equipment.Post("/", auth.RequireStaff(), cfg.Equipment.Create)
	equipment.Get("/:id", cfg.Equipment.Get)
	equipment.Put("/:id", auth.RequireStaff(), cfg.Equipment.Update)
	equipment.Delete("/:id", auth.RequireAdmin(), cfg.Equipment.Delete)
	equipment.Get("/:id/maintenance", cfg.Equipment.ListMaintenance)
	equipment.Post("/:id/maintenance", auth.RequireStaff(), cfg.Equipment.RecordMaintenance)

	repair := api.Group("/repair", cfg.AuthMiddleware.Handle)
	repair.Get("/", cfg.Repairs.List)
	repair.Post("/", cfg.Repairs.Create)
	repair.Get("/:id", cfg.Repairs.Get)
	repair.Put("/:id", cfg.Repairs.Update)
	repair.Delete("/:id", auth.RequireAdmin(), cfg.Repairs.Delete)
	repair.Get("/:id/history", cfg.Repairs.History)
	repair.Put("/:id/assign/:technicianId", auth.RequireAdmin(), cfg.Repairs.Assign)
	repair.Post("/:id/claim", auth.RequireStaff(), cfg.Repairs.Claim)

	repair.Get("/:id/attachments", cfg.Attachments.List)
	repair.Post("/:id/attachments", cfg.Attachments.Upload)
	repair.Get("/:id/attachments/:attachmentId", cfg.Attachments.Download)
	repair.Delete("/:id/attachments/:attachmentId", cfg.Attachments.Delete)
}

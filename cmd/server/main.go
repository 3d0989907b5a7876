// @title           LexBridge API
// @version         1.0
// @description     Legal-services marketplace backend: clients send engagement requests to lawyers, lawyers accept or decline, and an admin back office moderates.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"

	"github.com/lexbridge/lexbridge-backend/internal/auth"
	"github.com/lexbridge/lexbridge-backend/internal/mail"
	"github.com/lexbridge/lexbridge-backend/internal/notify"
	"github.com/lexbridge/lexbridge-backend/internal/requests"
	"github.com/lexbridge/lexbridge-backend/pkg/database"
	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.LawyerProfile{}, &models.ClientRequest{}, &models.RequestHistory{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api")

	// Auth
	authH := auth.NewHandler(db)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	// Outbound email, detached from every transition
	dispatcher := notify.NewDispatcher(db, mail.NewClient())

	// Engagement requests
	reqH := requests.NewHandler(db, dispatcher)

	// Static routes first so /:id doesn't shadow them
	api.Get("/requests/open", auth.RequireAuth(), auth.RequireRole("lawyer"), reqH.ListOpen)
	api.Get("/requests/client/:clientID/stats", auth.RequireAuth(), reqH.ClientStats)
	api.Get("/requests/client/:clientID", auth.RequireAuth(), reqH.ListByClient)
	api.Get("/requests/lawyer/:lawyerID/stats", auth.RequireAuth(), reqH.LawyerStats)
	api.Get("/requests/lawyer/:lawyerID", auth.RequireAuth(), reqH.ListByLawyer)

	api.Post("/requests", auth.RequireAuth(), auth.RequireRole("client"), reqH.Create)
	api.Get("/requests/:id", auth.RequireAuth(), reqH.Get)
	api.Patch("/requests/:id", auth.RequireAuth(), reqH.Update)
	api.Post("/requests/:id/accept", auth.RequireAuth(), auth.RequireRole("lawyer"), reqH.Accept)
	api.Post("/requests/:id/reject", auth.RequireAuth(), auth.RequireRole("lawyer"), reqH.Reject)
	api.Post("/requests/:id/cancel", auth.RequireAuth(), auth.RequireRole("client"), reqH.Cancel)
	api.Delete("/requests/:id", auth.RequireAuth(), auth.RequireRole("admin"), reqH.Delete)

	// Drain in-flight notification emails on shutdown
	app.Hooks().OnShutdown(func() error {
		dispatcher.Flush()
		return nil
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Println("Server running on :" + port)
	log.Fatal(app.Listen(":" + port))
}

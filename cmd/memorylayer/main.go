package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/memorylayer/internal/pkg/cache"
	"github.com/ManuelReschke/memorylayer/internal/pkg/database"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/oauth"
	"github.com/ManuelReschke/memorylayer/internal/pkg/router"
	"github.com/ManuelReschke/memorylayer/internal/pkg/session"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	deps, err := router.NewDependencies(database.GetDB(), cache.GetClient(), session.NewSessionStore())
	if err != nil {
		log.Fatalf("invalid route configuration: %v", err)
	}
	deps.SetupOAuth = oauth.Setup

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/memorylayer to project root
		"../../../", // Fallback
	}

	// Find the directory holding the API description
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "docs/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "docs/openapi.yml",
			Path:     "v1",
		}))
	} else {
		log.Println("docs/openapi.yml not found, API docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, deps)

	return app
}

package routes

import (
	"Quizrace/controllers"
	"Quizrace/middleware"
	"Quizrace/utils"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Deps struct {
	Engine               controllers.Engine
	History              controllers.History
	PaymentWebhookSecret string
	AdminKeyHash         string
	Health               []controllers.Dependency
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	// utils global
	router.Use(utils.Logger(), utils.ErrorHandler())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/")

	api.GET("/ping", controllers.Ping(deps.Health...))

	api.GET("/rounds/:round_id", controllers.GetRound(deps.Engine))

	api.GET("/games/:game_id/rounds", controllers.ListRounds(deps.Engine))

	api.GET("/games/:game_id/events", controllers.GameEvents(deps.History))

	api.GET("/participants/:id", controllers.GetParticipant(deps.Engine))

	// Routes that check the caller's session and device
	play := api.Group("/")
	play.Use(middleware.Identity())
	{
		play.POST("/games/:game_id/participants", controllers.Register(deps.Engine))

		play.POST("/participants/:id/start", controllers.Start(deps.Engine))

		play.POST("/participants/:id/answers", controllers.SubmitAnswer(deps.Engine))
	}

	api.POST("/payments/webhook", middleware.PaymentWebhookAuth(deps.PaymentWebhookSecret), controllers.PaymentWebhook(deps.Engine))

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired(deps.AdminKeyHash))
	{
		admin.POST("/rounds/:round_id/cancel", controllers.CancelRound(deps.Engine))
	}
}

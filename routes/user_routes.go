package routes

import (
	"cera/internal/handlers/shared"
	"cera/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes sets up routes for profiles and the volunteer lifecycle
func SetupUserRoutes(r *gin.RouterGroup, userHandler *handlers.UserHandler, jwtSecret string) {
	users := r.Group("/users")
	users.Use(middleware.AuthRequired(jwtSecret))
	{
		users.GET("/me", userHandler.GetProfile)
		users.PUT("/me/status", userHandler.UpdateAvailability)
		users.POST("/me/push-tokens", userHandler.RegisterPushToken)
		users.DELETE("/me/push-tokens", userHandler.RemovePushToken)

		// Volunteer lifecycle
		users.POST("/volunteer-applications", userHandler.ApplyAsVolunteer)

		volunteer := users.Group("")
		volunteer.Use(middleware.VolunteerRequired())
		{
			volunteer.POST("/me/work-logs", userHandler.LogWorkHours)
		}

		coordinator := users.Group("")
		coordinator.Use(middleware.CoordinatorRequired())
		{
			coordinator.GET("/volunteer-applications", userHandler.PendingVolunteers)
			coordinator.POST("/volunteer-applications/:id/approve", userHandler.ApproveVolunteer)
		}
	}
}

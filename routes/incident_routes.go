package routes

import (
	"cera/internal/handlers/shared"
	"cera/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupIncidentRoutes sets up routes for incident reporting and coordination
func SetupIncidentRoutes(r *gin.RouterGroup, incidentHandler *handlers.IncidentHandler, jwtSecret string) {
	incidents := r.Group("/incidents")
	incidents.Use(middleware.AuthRequired(jwtSecret))
	{
		// Reporting and reads
		incidents.POST("/", incidentHandler.ReportIncident)
		incidents.GET("/my", incidentHandler.MyIncidents)
		incidents.GET("/nearby", incidentHandler.NearbyIncidents)
		incidents.GET("/:id", incidentHandler.GetIncident)

		// Volunteer task flow
		volunteer := incidents.Group("")
		volunteer.Use(middleware.VolunteerRequired())
		{
			volunteer.GET("/assigned/me", incidentHandler.AssignedToMe)
			volunteer.GET("/completed/me", incidentHandler.CompletedByMe)
			volunteer.POST("/:id/accept", incidentHandler.AcceptTask)
			volunteer.POST("/:id/decline", incidentHandler.DeclineTask)
			volunteer.POST("/:id/complete", incidentHandler.CompleteTask)
			volunteer.POST("/:id/contact-coordinators", incidentHandler.ContactCoordinators)
		}

		// Coordinator triage
		coordinator := incidents.Group("")
		coordinator.Use(middleware.CoordinatorRequired())
		{
			coordinator.GET("/", incidentHandler.ListIncidents)
			coordinator.POST("/:id/approve", incidentHandler.ApproveIncident)
			coordinator.POST("/:id/dispatch", incidentHandler.DispatchVolunteers)
		}
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth          *AuthHandler
	User          *UserHandler
	Host          *HostHandler
	Campaign      *CampaignHandler
	Participation *ParticipationHandler
	Link          *LinkHandler
	Analytics     *AnalyticsHandler
}

// RouteOptions carries the middleware and switches routes depend on
type RouteOptions struct {
	RequireAuth  gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	ClickLimit   gin.HandlerFunc
	// DevSessions exposes POST /auth/session
	DevSessions bool
}

// RegisterRoutes mounts the API on r
func RegisterRoutes(r gin.IRouter, h Handlers, opts RouteOptions) {
	r.GET("/l/:code", opts.ClickLimit, opts.OptionalAuth, h.Link.Redirect)

	authGroup := r.Group("/auth")
	{
		if opts.DevSessions {
			authGroup.POST("/session", h.Auth.CreateSession)
		}
		authGroup.GET("/me", opts.RequireAuth, h.User.GetProfile)
	}

	api := r.Group("/api")
	api.Use(opts.RequireAuth)
	{
		hosts := api.Group("/hosts")
		{
			hosts.POST("", h.Host.RegisterHost)
			hosts.GET("/me", h.Host.GetMe)
			hosts.DELETE("/me", h.Host.Deactivate)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", h.Campaign.CreateCampaign)
			campaigns.GET("", h.Campaign.GetCampaigns)
			campaigns.GET("/stream", h.Campaign.StreamCampaigns)
			campaigns.GET("/:id", h.Campaign.GetCampaign)
			campaigns.PATCH("/:id/status", h.Campaign.UpdateCampaignStatus)
			campaigns.DELETE("/:id", h.Campaign.DeleteCampaign)
			campaigns.POST("/:id/join", h.Campaign.JoinCampaign)
			campaigns.POST("/:id/draw", h.Campaign.DrawWinners)
			campaigns.GET("/:id/participants", h.Participation.GetCampaignParticipants)
			campaigns.POST("/:id/access", h.Participation.LogAccess)
			campaigns.GET("/:id/links", h.Link.GetCampaignLinks)
			campaigns.POST("/:id/links", h.Link.GenerateLink)
			campaigns.GET("/:id/analytics", h.Analytics.GetCampaignAnalytics)

			participation := campaigns.Group("/:id/participation")
			{
				participation.POST("/install", h.Participation.UpdateInstallStatus)
				participation.POST("/install-prompt", h.Participation.RecordInstallPrompt)
				participation.POST("/notifications", h.Participation.UpdateNotificationSettings)
				participation.POST("/claim", h.Participation.ClaimPrize)
			}
		}

		me := api.Group("/me")
		{
			me.GET("/participations", h.Participation.GetMyParticipations)
			me.GET("/install-prompt", h.User.GetInstallPrompt)
			me.POST("/push-token", h.User.RegisterPushToken)
		}

		hostOnly := api.Group("")
		hostOnly.Use(h.Host.HostMiddleware())
		{
			hostOnly.DELETE("/links/:id", h.Link.DeleteLink)
			hostOnly.GET("/links/stats", h.Link.GetHostLinkStats)
			hostOnly.GET("/analytics/host", h.Analytics.GetHostAnalytics)
			hostOnly.GET("/analytics/realtime", h.Analytics.GetRealtimeStats)
		}
	}
}

package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/controllers"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/middleware"
	"github.com/vnkhanh/tracer-study/services"
	"github.com/vnkhanh/tracer-study/utils"
	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Auth      *services.AuthService
	Schema    *services.SchemaService
	Responses *services.ResponseService
	Reports   *services.ReportService
	Health    map[string]controllers.Healther
	Logger    *logger.Logger
	// AuthLimiter throttles the public auth endpoints per client IP.
	AuthLimiter *utils.KeyedLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	limiter := d.AuthLimiter
	if limiter == nil {
		limiter = utils.NewKeyedLimiter(20, 20, 10*time.Minute)
	}

	authCtl := controllers.NewAuthController(d.Auth, log)
	qnCtl := controllers.NewQuestionnaireController(d.Schema, log)
	qCtl := controllers.NewQuestionController(d.Schema, log)
	respCtl := controllers.NewResponseController(d.Schema, d.Responses, d.Reports, log)
	expCtl := controllers.NewExportController(d.Reports, log)
	health := controllers.NewHealthController(d.DB, d.Health)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", health.Check)

	ownsQuestionnaire := middleware.RequireOwner("id", d.Schema.OwnerOfQuestionnaire, log)
	ownsSection := middleware.RequireOwner("id", d.Schema.OwnerOfSection, log)
	ownsQuestion := middleware.RequireOwner("id", d.Schema.OwnerOfQuestion, log)
	ownsOption := middleware.RequireOwner("id", d.Schema.OwnerOfOption, log)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(middleware.RateLimitByIP(limiter))
		{
			auth.POST("/register", authCtl.Register)
			auth.POST("/login", authCtl.Login)
			auth.POST("/forgot-password", authCtl.ForgotPassword)
			auth.POST("/verify-reset-token", authCtl.VerifyResetToken)
			auth.POST("/reset-password", authCtl.ResetPassword)
		}

		public := api.Group("/public")
		public.Use(middleware.OptionalAuth(d.Auth))
		{
			public.GET("/questionnaires/:slug", respCtl.PublicForm)
			public.POST("/questionnaires/:slug/responses", respCtl.Start)
			public.POST("/questionnaires/:slug/submit", respCtl.Submit)
			public.PUT("/responses/:id/answers/:question_id", respCtl.SaveAnswer)
			public.POST("/responses/:id/complete", respCtl.Complete)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthJWT(d.Auth))
		{
			protected.GET("/me", authCtl.Me)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/generate-slug", qnCtl.GenerateSlug)

			qn := admin.Group("/questionnaires")
			{
				qn.POST("", qnCtl.Create)
				qn.GET("", qnCtl.List)
				qn.GET("/:id", ownsQuestionnaire, qnCtl.Get)
				qn.GET("/:id/tree", ownsQuestionnaire, qnCtl.Tree)
				qn.PUT("/:id", ownsQuestionnaire, qnCtl.Update)
				qn.DELETE("/:id", ownsQuestionnaire, qnCtl.Delete)
				qn.PATCH("/:id/status", ownsQuestionnaire, qnCtl.SetStatus)
				qn.POST("/:id/clone", ownsQuestionnaire, qnCtl.Clone)
				qn.PUT("/:id/sections/reorder", ownsQuestionnaire, qnCtl.ReorderSections)
				qn.POST("/:id/sections", ownsQuestionnaire, qnCtl.CreateSection)

				qn.GET("/:id/responses", ownsQuestionnaire, respCtl.List)
				qn.GET("/:id/responses/:response_id", ownsQuestionnaire, respCtl.Get)
				qn.GET("/:id/statistics", ownsQuestionnaire, respCtl.Statistics)
				qn.GET("/:id/summaries", ownsQuestionnaire, respCtl.Summaries)
				qn.GET("/:id/export/:format", ownsQuestionnaire, expCtl.Export)
			}

			sections := admin.Group("/sections")
			{
				sections.PUT("/:id", ownsSection, qnCtl.UpdateSection)
				sections.DELETE("/:id", ownsSection, qnCtl.DeleteSection)
				sections.PUT("/:id/questions/reorder", ownsSection, qnCtl.ReorderQuestions)
				sections.POST("/:id/questions", ownsSection, qCtl.Create)
			}

			questions := admin.Group("/questions")
			{
				questions.PUT("/:id", ownsQuestion, qCtl.Update)
				questions.DELETE("/:id", ownsQuestion, qCtl.Delete)
				questions.PUT("/:id/move", ownsQuestion, qCtl.Move)
				questions.POST("/:id/options", ownsQuestion, qCtl.CreateOption)
				questions.PUT("/:id/options/reorder", ownsQuestion, qCtl.ReorderOptions)
				questions.PUT("/:id/logic", ownsQuestion, qCtl.ReplaceLogic)
			}

			options := admin.Group("/options")
			{
				options.PUT("/:id", ownsOption, qCtl.UpdateOption)
				options.DELETE("/:id", ownsOption, qCtl.DeleteOption)
			}
		}
	}
}

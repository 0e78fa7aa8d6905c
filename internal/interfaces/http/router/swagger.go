package router

import (
	"github.com/gin-gonic/gin"
	_ "github.com/herbtrace/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SwaggerPath serves the API document and UI, outside the versioned prefix
const SwaggerPath = "/swagger/*any"

// RegisterSwagger mounts the Swagger UI on engine
func RegisterSwagger(engine *gin.Engine) {
	engine.GET(SwaggerPath, ginSwagger.WrapHandler(swaggerFiles.Handler))
}

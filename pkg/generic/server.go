package generic

import "github.com/gin-gonic/gin"

// Server carries what the web layer needs to expose an API surface: the
// router, the listen port and the HTTP methods it will answer.
type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
}

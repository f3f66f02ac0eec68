package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/fmd-gateway/web"
)

// RegisterUI serves the embedded browser client at the site root.
func RegisterUI(router *gin.Engine) error {
	page, err := web.Static.ReadFile("static/index.html")
	if err != nil {
		return err
	}

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
	return nil
}

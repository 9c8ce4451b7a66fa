package handler

import (
	"net/http"

	"ghg-workflow-backend/bootstrap"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

var appHandler http.HandlerFunc

func init() {
	app, err := bootstrap.New()
	if err != nil {
		panic("app create: " + err.Error())
	}
	appHandler = adaptor.FiberApp(app)
}

// Handler is the serverless entry point. All requests are rewritten here.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	appHandler(w, r)
}

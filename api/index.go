package handler

import (
	"net/http"

	"easyflip-backend/bootstrap"
)

var apiHandler http.Handler

func init() {
	var err error
	apiHandler, err = bootstrap.New()
	if err != nil {
		panic("app create: " + err.Error())
	}
}

// Handler is the Vercel serverless entry point. All requests are rewritten here.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	apiHandler.ServeHTTP(w, r)
}

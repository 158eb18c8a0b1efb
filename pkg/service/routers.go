// Package service exposes catalogued tables over HTTP.
package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tablekit/pkg/logging"
)

// A Route defines the parameters for an api endpoint
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Routes is a map of defined api endpoints
type Routes map[string]Route

// Router defines the required methods for retrieving api routes
type Router interface {
	Routes() Routes
}

// NewRouter creates a new router for any number of api routers
func NewRouter(routers ...Router) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	for _, api := range routers {
		for name, route := range api.Routes() {
			handler := logRequests(route.HandlerFunc, name)
			router.
				Methods(route.Method).
				Path(route.Pattern).
				Name(name).
				Handler(handler)
		}
	}
	return router
}

func logRequests(inner http.Handler, name string) http.Handler {
	log := logging.WithComponent("service")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)
		log.Info("request", "method", r.Method, "uri", r.RequestURI, "route", name, "duration", time.Since(start))
	})
}

// ImplResponse defines an implementation response with error code and the
// associated body
type ImplResponse struct {
	Code int
	Body interface{}
}

// Response return a ImplResponse struct filled
func Response(code int, body interface{}) ImplResponse {
	return ImplResponse{Code: code, Body: body}
}

// EncodeJSONResponse uses the json encoder to write an interface to the http response with an optional status code
func EncodeJSONResponse(i interface{}, status *int, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if status != nil {
		w.WriteHeader(*status)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if i == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(i)
}

func writeResult(w http.ResponseWriter, result ImplResponse, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		_ = EncodeJSONResponse(Error{Message: err.Error()}, &status, w)
		logging.WithComponent("service").Error("request failed", "error", err)
		return
	}
	if encErr := EncodeJSONResponse(result.Body, &result.Code, w); encErr != nil {
		logging.WithComponent("service").Error("failed to encode response", "error", encErr)
	}
}

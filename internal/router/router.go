// Package router maps the /api/v1 surface onto its handlers.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/dashboard"
	"github.com/campusgig/backend/internal/handlers"
)

const base = "/api/v1"

type Deps struct {
	// Authenticate guards every /api/v1 route.
	Authenticate func(http.Handler) http.Handler

	Session *auth.Handler
	Account *dashboard.Handler
	Tasks   *handlers.TaskHandler
	Chat    *handlers.ChatHandler
}

// New returns the API mux. /healthz is public; everything under /api/v1 requires a session token.
func New(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, d.Authenticate(h))
	}

	handle("POST "+base+"/session", d.Session.Session)

	handle("GET "+base+"/me", d.Account.GetMe)
	handle("PATCH "+base+"/me", d.Account.UpdateMe)
	handle("GET "+base+"/wallet", d.Account.GetWallet)
	handle("GET "+base+"/wallet/ledger", d.Account.ListLedger)

	handle("POST "+base+"/tasks", d.Tasks.CreateTask)
	handle("GET "+base+"/tasks", d.Tasks.ListOpen)
	handle("GET "+base+"/tasks/mine", d.Tasks.ListMine)
	handle("GET "+base+"/tasks/{id}", d.Tasks.GetTask)
	handle("POST "+base+"/tasks/{id}/applications", d.Tasks.Apply)
	handle("GET "+base+"/tasks/{id}/applications", d.Tasks.ListApplications)
	handle("POST "+base+"/tasks/{id}/assign", d.Tasks.Assign)
	handle("POST "+base+"/tasks/{id}/submit", d.Tasks.Submit)
	handle("POST "+base+"/tasks/{id}/complete", d.Tasks.Complete)

	handle("GET "+base+"/tasks/{id}/messages", d.Chat.History)
	handle("POST "+base+"/tasks/{id}/messages", d.Chat.Send)
	handle("GET "+base+"/tasks/{id}/messages/stream", d.Chat.Stream)

	return mux
}

package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Post("/api/rooms", c.createRoom)
	r.Post("/api/rooms/{room-id}/join", c.joinRoom)
	r.Get("/api/rooms/{room-id}", c.getRoomState)

	r.HandleFunc("/ws/rooms/{room-id}", c.attach)

	return r
}

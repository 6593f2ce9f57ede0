package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rollroom/internal/room"
	"rollroom/internal/ws"
)

func SetupRoutes(rm *room.Room, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", ws.Handler(rm, log))
	r.Get("/healthz", Healthz)
	r.Get("/version", Version)
	r.Get("/qr", RoomQR)
	return r
}

// stubserver is an in-memory implementation of the guest chat REST surface,
// for developing the CLI and SDK without the real backend. Assistant replies
// are canned.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/telamed/guestchat/internal/domain"
)

func main() {
	for _, p := range []string{".env", "../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	port := flag.Int("port", 8080, "listen port")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store := newMemStore()
	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	log.Info().Str("addr", addr).Msg("stub guest chat API listening")
	if err := http.ListenAndServe(addr, newRouter(store)); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newRouter(store *memStore) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Guest-Session-Id"},
		MaxAge:         300,
	}))

	r.Post("/guest/start", func(w http.ResponseWriter, req *http.Request) {
		sess := store.createSession()
		writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID})
	})

	r.Get("/guest/session/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		sess, ok := store.session(chi.URLParam(req, "sessionID"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessionId": sess.ID, "chats": sess.Chats})
	})

	r.Post("/guest/chats/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(req.Body).Decode(&body)
		chat, ok := store.createChat(chi.URLParam(req, "sessionID"), body.Title)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusCreated, chat)
	})

	r.Put("/guest/chats/{sessionID}/{chatID}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(req.Body).Decode(&body)
		if !store.renameChat(chi.URLParam(req, "sessionID"), chi.URLParam(req, "chatID"), body.Title) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	r.Delete("/guest/chats/{sessionID}/{chatID}", func(w http.ResponseWriter, req *http.Request) {
		if !store.deleteChat(chi.URLParam(req, "sessionID"), chi.URLParam(req, "chatID")) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/guest/chat/{sessionID}/{chatID}/history", func(w http.ResponseWriter, req *http.Request) {
		chat, ok := store.chat(chi.URLParam(req, "sessionID"), chi.URLParam(req, "chatID"))
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": chat.Messages})
	})

	r.Post("/v2/messages/chat/{chatID}", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Guest-Session-Id") == "" {
			writeError(w, http.StatusUnauthorized, "missing guest session header")
			return
		}
		chat, ok := store.findChat(chi.URLParam(req, "chatID"))
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		json.NewDecoder(req.Body).Decode(&body)

		store.appendMessage(chat, "user", body.Message)
		reply := fmt.Sprintf("This is a stub reply to: %s", body.Message)
		store.appendMessage(chat, "assistant", reply)
		writeJSON(w, http.StatusOK, map[string]string{"response": reply})
	})

	r.Post("/v2/messages/chat/{chatID}/files/batch", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(64 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		category := domain.FileCategory(req.FormValue("category"))
		if _, ok := domain.CategoryRuleFor(category); !ok {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		var names []string
		var sizes []int64
		for _, header := range req.MultipartForm.File["files"] {
			names = append(names, header.Filename)
			sizes = append(sizes, header.Size)
		}
		batch := store.createBatch(category, names, sizes)
		writeJSON(w, http.StatusAccepted, map[string]string{"batchId": batch.ID})
	})

	r.Get("/v2/messages/files/batch/{batchID}/status", func(w http.ResponseWriter, req *http.Request) {
		job, ok := store.pollBatch(chi.URLParam(req, "batchID"))
		if !ok {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":             job.Status,
			"progressPercentage": job.Progress,
		})
	})

	r.Get("/v2/messages/files/batch/{batchID}/files", func(w http.ResponseWriter, req *http.Request) {
		files, ok := store.batchFiles(chi.URLParam(req, "batchID"))
		if !ok {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": files})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/auth"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/db"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/ratelimit"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/ws"
)

// Per-IP budget for register/login attempts
const (
	credentialRate  = 1.0
	credentialBurst = 10
)

type API struct {
	hub         *ws.Hub
	database    *db.Database
	auth        *auth.Service
	credLimiter *ratelimit.Keyed
}

func New(hub *ws.Hub, database *db.Database, authService *auth.Service) *API {
	return &API{
		hub:         hub,
		database:    database,
		auth:        authService,
		credLimiter: ratelimit.NewKeyed(credentialRate, credentialBurst),
	}
}

// throttle applies the per-IP credential budget, answering 429 when the
// caller has exhausted it.
func (a *API) throttle(w http.ResponseWriter, r *http.Request) bool {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !a.credLimiter.Allow(ip) {
		errorResponse(w, http.StatusTooManyRequests, "Too many attempts, slow down")
		return false
	}
	return true
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"shared_files":   a.hub.GetFileCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		if users, err := a.database.CountUsers(); err == nil {
			stats["registered_users"] = users
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room listing

type RoomResponse struct {
	ID          string `json:"id"`
	ActiveUsers int    `json:"active_users"`
}

// RoomsHandler lists the rooms that currently have members. Rooms exist
// only while occupied (plus a janitor grace period); there is nothing to
// page through.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	activeRooms := a.hub.GetActiveRooms()

	rooms := make([]RoomResponse, 0, len(activeRooms))
	for id, users := range activeRooms {
		rooms = append(rooms, RoomResponse{ID: id, ActiveUsers: users})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// Credential endpoints

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !a.throttle(w, r) {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		errorResponse(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	if err := a.auth.Register(req.Username, req.Email, req.Password); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			errorResponse(w, http.StatusBadRequest, "User already exists")
			return
		}
		log.Printf("Registration failed for %q: %v", req.Username, err)
		errorResponse(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"message": "Successfully registered"})
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !a.throttle(w, r) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		errorResponse(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := a.auth.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			errorResponse(w, http.StatusBadRequest, "User does not exist, please register")
		case errors.Is(err, auth.ErrBadCredentials):
			errorResponse(w, http.StatusBadRequest, "Incorrect password")
		default:
			log.Printf("Login failed for %q: %v", req.Username, err)
			errorResponse(w, http.StatusInternalServerError, "Error during login")
		}
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"accessToken": token})
}

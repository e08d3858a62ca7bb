package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/api"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/auth"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/db"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/janitor"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/registry"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/store"
	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/ws"
)

const tokenTTL = time.Hour

func main() {
	dbPath := os.Getenv("CODIFY_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/codify.db"
	}

	jwtSecret := os.Getenv("CODIFY_JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
		log.Println("⚠️ CODIFY_JWT_SECRET not set, using development secret")
	}

	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	reg := registry.New()
	fileStore := store.New()

	hub := ws.NewHub(reg, fileStore)
	go hub.Run()

	reaper := janitor.New(reg, fileStore, janitorConfig())
	reaper.Start()

	authService := auth.New(database, jwtSecret, tokenTTL)
	apiHandler := api.New(hub, database, authService)

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	http.HandleFunc("/health", apiHandler.HealthHandler)
	http.HandleFunc("/register", apiHandler.RegisterHandler)
	http.HandleFunc("/login", apiHandler.LoginHandler)
	http.HandleFunc("/api/stats", authService.Middleware(apiHandler.StatsHandler))
	http.HandleFunc("/api/rooms", authService.Middleware(apiHandler.RoomsHandler))

	// Apply CORS middleware
	handler := corsMiddleware(http.DefaultServeMux)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		reaper.Stop()
		database.Close()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("⚡ Codify server starting on :%s", port)
	log.Printf("📁 Database: %s", dbPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Register:  POST /register")
	log.Println("  - Login:     POST /login")
	log.Println("  - Stats:     GET /api/stats (bearer token)")
	log.Println("  - Rooms:     GET /api/rooms (bearer token)")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func janitorConfig() janitor.Config {
	config := janitor.DefaultConfig()
	if v := os.Getenv("CODIFY_ROOM_GRACE"); v != "" {
		grace, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid CODIFY_ROOM_GRACE %q: %v", v, err)
		}
		config.GracePeriod = grace
	}
	return config
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

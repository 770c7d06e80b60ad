package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/damir-m/splitmate/internal/config"
	"github.com/damir-m/splitmate/internal/database"
	"github.com/damir-m/splitmate/internal/handlers"
	"github.com/damir-m/splitmate/internal/jobs"
	cronjobs "github.com/damir-m/splitmate/internal/scheduler"
	"github.com/damir-m/splitmate/internal/services"
	"github.com/damir-m/splitmate/internal/storage/mongodb"
	enginesync "github.com/damir-m/splitmate/internal/sync"
	"github.com/damir-m/splitmate/pkg/logger"
	"github.com/damir-m/splitmate/pkg/middleware"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Stores ---
	userStore := mongodb.NewUserStore(db)
	billStore := mongodb.NewBillStore(db)

	// --- Synchronization hub ---
	hub := enginesync.NewHub(userStore, billStore)

	// --- Services ---
	userService := services.NewUserService(userStore)
	friendService := services.NewFriendService(userStore, hub)
	billService := services.NewBillService(billStore, userStore, hub)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	friendHandler := handlers.NewFriendHandler(friendService)
	billHandler := handlers.NewBillHandler(billService)
	uploadHandler := handlers.NewUploadHandler(cfg)
	syncHandler := handlers.NewSyncHandler(hub, cfg.JWTSecret)

	// Periodic friend-graph repair
	reconciler := jobs.NewFriendReconciler(userStore, hub)
	cronjobs.StartReconcileCronJobs(reconciler)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	// Friend routes
	protectedFriendRoutes := router.PathPrefix("/friends").Subrouter()
	protectedFriendRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedFriendRoutes.HandleFunc("", friendHandler.AddFriendHandler).Methods("POST")
	protectedFriendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")
	protectedFriendRoutes.HandleFunc("/{id}", friendHandler.RemoveFriendHandler).Methods("DELETE")

	// Bill routes
	protectedBillRoutes := router.PathPrefix("/bills").Subrouter()
	protectedBillRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedBillRoutes.HandleFunc("", billHandler.CreateBillHandler).Methods("POST")
	protectedBillRoutes.HandleFunc("/pending", billHandler.GetPendingBillsHandler).Methods("GET")
	protectedBillRoutes.HandleFunc("/{id}/pay", billHandler.MarkPaidHandler).Methods("POST")

	// QR image upload and serving
	protectedUploadRoutes := router.PathPrefix("/upload").Subrouter()
	protectedUploadRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUploadRoutes.HandleFunc("", uploadHandler.UploadQrHandler).Methods("POST")
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Live snapshot feed (token passed as query parameter)
	router.HandleFunc("/ws/sync", syncHandler.SubscribeHandler)

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // adjust to frontend origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

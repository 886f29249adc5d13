package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/carlink/backend/docs"
	"github.com/carlink/backend/internal/config"
	"github.com/carlink/backend/internal/database"
	"github.com/carlink/backend/internal/jobs"
	mW "github.com/carlink/backend/internal/middleware"
	"github.com/carlink/backend/internal/services"
)

// @title CarLink Backend API
// @version 1.0
// @description API for car rental, wallet and VNPay payment reconciliation
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("vnpay.pay_url", "VNPAY_PAY_URL")
	viper.BindEnv("vnpay.return_url", "VNPAY_RETURN_URL")
	viper.BindEnv("vnpay.tmn_code", "VNPAY_TMN_CODE")
	viper.BindEnv("vnpay.secret_key", "VNPAY_SECRET_KEY")
	viper.BindEnv("vnpay.expire_minutes", "VNPAY_EXPIRE_MINUTES")

	viper.BindEnv("sendgrid.api_key", "SENDGRID_API_KEY")
	viper.BindEnv("sendgrid.from_email", "SENDGRID_FROM_EMAIL")
	viper.BindEnv("sendgrid.from_name", "SENDGRID_FROM_NAME")

	viper.BindEnv("upload.dir", "UPLOAD_DIR")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Gateway credentials are fatal when absent: every signature depends on them
	vnpayConfig := config.GetVNPayConfig()
	if err := vnpayConfig.Validate(); err != nil {
		log.Fatalf("Invalid VNPay configuration: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "CarLink Backend API"
	docs.SwaggerInfo.Description = "API for car rental, wallet and VNPay payment reconciliation"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	viper.SetDefault("upload.dir", "./static")
	uploadDir := viper.GetString("upload.dir")

	mailService := services.NewMailService()
	authService := services.NewAuthService(db, redisClient)
	userService := services.NewUserService(db)
	carService := services.NewCarService(db, uploadDir)
	bookingService := services.NewBookingService(db, mailService)
	paymentService := services.NewPaymentService(db, vnpayConfig)
	bankService := services.NewBankService()

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Expiry sweeper
	sweeper := jobs.NewExpirySweeper(bookingService)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start expiry sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for car photos and bank logos
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer(uploadDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/banks", bankService.ListBanks)
		r.Get("/cars", carService.ListCars)
		r.Get("/cars/{id}", carService.GetCar)

		// Gateway callbacks arrive unauthenticated; the signature is the auth
		r.Get("/payments/vnpay/ipn", paymentService.HandleIPN)
		r.Get("/payments/vnpay/return", paymentService.HandleReturn)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/users/me", userService.GetProfile)
			r.Get("/users/me/wallet", userService.GetWallet)
			r.Get("/users/me/transactions", userService.ListTransactions)

			r.Post("/payments/vnpay/topup", paymentService.CreateTopUp)
			r.Post("/payments/vnpay/topup/qr", paymentService.TopUpQR)

			r.Post("/cars", carService.AddCar)
			r.Get("/cars/mine", carService.ListMyCars)
			r.Post("/cars/{id}/stop", carService.StopCar)
			r.Post("/cars/{id}/relist", carService.RelistCar)
			r.Post("/cars/{id}/photo", carService.UploadPhoto)

			r.Post("/bookings", bookingService.CreateBooking)
			r.Get("/bookings", bookingService.ListMyBookings)
			r.Get("/bookings/owner", bookingService.ListOwnerBookings)
			r.Get("/bookings/owner/summary", bookingService.OwnerMonthlySummary)
			r.Get("/bookings/{id}", bookingService.GetBooking)
			r.Post("/bookings/{id}/confirm-deposit", bookingService.ConfirmDeposit)
			r.Post("/bookings/{id}/pick-up", bookingService.ConfirmPickUp)
			r.Post("/bookings/{id}/return", bookingService.ReturnCar)
			r.Post("/bookings/{id}/confirm-payment", bookingService.ConfirmPayment)
			r.Post("/bookings/{id}/cancel", bookingService.CancelBooking)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

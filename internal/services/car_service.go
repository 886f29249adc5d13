package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carlink/backend/internal/models"
)

// CarService manages the car catalogue: listing, registration and photo
// uploads by owners.
type CarService struct {
	db        *sql.DB
	validator *ValidationHelper
	uploadDir string
}

func NewCarService(db *sql.DB, uploadDir string) *CarService {
	return &CarService{
		db:        db,
		validator: NewValidationHelper(),
		uploadDir: uploadDir,
	}
}

type AddCarRequest struct {
	Name         string `json:"name" validate:"required,min=2"`
	LicensePlate string `json:"licensePlate" validate:"required,min=4"`
	BasePrice    int64  `json:"basePrice" validate:"required,gt=0"` // VND per 24h
	Deposit      int64  `json:"deposit" validate:"required,gt=0"`
}

// AddCar registers a car for the authenticated owner
// @Summary Register a car
// @Tags cars
// @Accept json
// @Produce json
// @Param request body AddCarRequest true "Car data"
// @Success 201 {object} models.Car
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /cars [post]
func (cs *CarService) AddCar(w http.ResponseWriter, r *http.Request) {
	ownerID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req AddCarRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var car models.Car
	err = cs.db.QueryRow(`
		INSERT INTO cars (owner_id, name, license_plate, base_price, deposit, is_active, is_available, is_stopped, photo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, TRUE, FALSE, '', NOW())
		RETURNING id, created_at`,
		ownerID, req.Name, strings.ToUpper(req.LicensePlate), req.BasePrice, req.Deposit).Scan(&car.ID, &car.CreatedAt)
	if err != nil {
		log.Printf("[CAR] Creation failed owner=%d plate=%s: %v", ownerID, req.LicensePlate, err)
		SendErrorResponse(w, "License plate already registered", http.StatusConflict, nil)
		return
	}

	car.OwnerID = ownerID
	car.Name = req.Name
	car.LicensePlate = strings.ToUpper(req.LicensePlate)
	car.BasePrice = req.BasePrice
	car.Deposit = req.Deposit
	car.IsActive = true
	car.IsAvailable = true

	log.Printf("[CAR] Registered car=%d owner=%d", car.ID, ownerID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(car)
}

// ListCars lists available cars
// @Summary List available cars
// @Tags cars
// @Produce json
// @Param q query string false "Name keyword filter"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {array} models.Car
// @Router /cars [get]
func (cs *CarService) ListCars(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)
	keyword := "%" + strings.TrimSpace(r.URL.Query().Get("q")) + "%"
	rows, err := cs.db.Query(`
		SELECT id, owner_id, name, license_plate, base_price, deposit, is_active, is_available, is_stopped, photo_url, created_at
		FROM cars
		WHERE is_active = TRUE AND is_available = TRUE AND is_stopped = FALSE
		  AND name ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, keyword, size, (page-1)*size)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cs.writeCarRows(w, rows)
}

// ListMyCars lists the authenticated owner's cars
// @Summary List my cars
// @Tags cars
// @Produce json
// @Success 200 {array} models.Car
// @Security BearerAuth
// @Router /cars/mine [get]
func (cs *CarService) ListMyCars(w http.ResponseWriter, r *http.Request) {
	ownerID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := cs.db.Query(`
		SELECT id, owner_id, name, license_plate, base_price, deposit, is_active, is_available, is_stopped, photo_url, created_at
		FROM cars
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cs.writeCarRows(w, rows)
}

// GetCar returns one car
// @Summary Get car detail
// @Tags cars
// @Produce json
// @Param id path int true "Car ID"
// @Success 200 {object} models.Car
// @Failure 404 {object} ErrorResponse
// @Router /cars/{id} [get]
func (cs *CarService) GetCar(w http.ResponseWriter, r *http.Request) {
	carID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid car id", http.StatusBadRequest, nil)
		return
	}

	var c models.Car
	err = cs.db.QueryRow(`
		SELECT id, owner_id, name, license_plate, base_price, deposit, is_active, is_available, is_stopped, photo_url, created_at
		FROM cars
		WHERE id = $1`, carID).Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.LicensePlate, &c.BasePrice, &c.Deposit,
		&c.IsActive, &c.IsAvailable, &c.IsStopped, &c.PhotoURL, &c.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Car not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// StopCar takes a car out of rotation
// @Summary Stop a car
// @Tags cars
// @Produce json
// @Param id path int true "Car ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /cars/{id}/stop [post]
func (cs *CarService) StopCar(w http.ResponseWriter, r *http.Request) {
	ownerID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	carID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid car id", http.StatusBadRequest, nil)
		return
	}

	result, err := cs.db.Exec(`
		UPDATE cars
		SET is_stopped = TRUE, is_available = FALSE
		WHERE id = $1 AND owner_id = $2`, carID, ownerID)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Car not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Car stopped"})
}

// RelistCar puts a stopped car back in rotation
// @Summary Relist a stopped car
// @Tags cars
// @Produce json
// @Param id path int true "Car ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /cars/{id}/relist [post]
func (cs *CarService) RelistCar(w http.ResponseWriter, r *http.Request) {
	ownerID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	carID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid car id", http.StatusBadRequest, nil)
		return
	}

	result, err := cs.db.Exec(`
		UPDATE cars
		SET is_stopped = FALSE, is_available = TRUE
		WHERE id = $1 AND owner_id = $2`, carID, ownerID)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Car not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Car relisted"})
}

// UploadPhoto stores a car photo
// @Summary Upload a car photo
// @Tags cars
// @Accept mpfd
// @Produce json
// @Param id path int true "Car ID"
// @Param photo formData file true "Photo file"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /cars/{id}/photo [post]
func (cs *CarService) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ownerID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	carID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid car id", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5 MB
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		SendErrorResponse(w, "File too large or malformed form", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		SendErrorResponse(w, "Missing photo field", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		SendErrorResponse(w, "Only JPEG and PNG photos are accepted", http.StatusBadRequest, nil)
		return
	}

	filename := uuid.New().String() + ext
	if err := os.MkdirAll(cs.uploadDir, 0o755); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	dst, err := os.Create(filepath.Join(cs.uploadDir, filename))
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	photoURL := fmt.Sprintf("/static/%s", filename)
	result, err := cs.db.Exec(`
		UPDATE cars
		SET photo_url = $1
		WHERE id = $2 AND owner_id = $3`, photoURL, carID, ownerID)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Car not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[CAR] Photo uploaded car=%d file=%s", carID, filename)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"photoUrl": photoURL})
}

func (cs *CarService) writeCarRows(w http.ResponseWriter, rows *sql.Rows) {
	cars := []models.Car{}
	for rows.Next() {
		var c models.Car
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.LicensePlate, &c.BasePrice, &c.Deposit,
			&c.IsActive, &c.IsAvailable, &c.IsStopped, &c.PhotoURL, &c.CreatedAt); err != nil {
			SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
			return
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cars)
}

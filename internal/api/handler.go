package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/miru4128/new-gaaytri/domain"
	"github.com/miru4128/new-gaaytri/internal/media"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// historyDisplayLimit bounds the stock log shown on the update screen.
const historyDisplayLimit = 10

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db     *sqlx.DB
	secret string
	media  *media.Store
	log    *zap.Logger
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string, store *media.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, secret: secret, media: store, log: log}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/me", h.me)

		pr.Route("/cattle", func(r chi.Router) {
			r.Post("/", h.createCattle)
			r.Get("/", h.listCattle)
			r.Put("/{id}", h.updateCattle)
		})

		pr.Get("/catalog/breeds", h.listBreeds)

		pr.Route("/finance", func(r chi.Router) {
			r.Post("/", h.createFinancialRecord)
			r.Get("/", h.financialPerformance)
		})

		pr.Route("/inventory", func(r chi.Router) {
			r.Post("/", h.createInventoryItem)
			r.Get("/", h.listInventory)
			r.Post("/{id}/update", h.updateStock)
			r.Get("/{id}/history", h.inventoryHistory)
		})

		pr.Route("/connect", func(r chi.Router) {
			r.Get("/doctors", h.listDoctors)
			r.Get("/inbox", h.inbox)
			r.Get("/chat/{userID}", h.conversation)
			r.Post("/chat/{userID}", h.sendMessage)
		})
	})

	if h.media != nil {
		fileServer := http.FileServer(http.Dir(h.media.Dir()))
		r.Handle("/media/*", http.StripPrefix("/media/", fileServer))
	}

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role domain.Role) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, domain.Role(claims.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...domain.Role) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(domain.Role)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func currentUserID(r *http.Request) int64 {
	return r.Context().Value(ctxUserID).(int64)
}

// Auth Handlers

type registerRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	FarmName       string `json:"farm_name,omitempty"`
	Location       string `json:"location,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
}

type authResponse struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	Dashboard string      `json:"dashboard"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "username, email, password and role are required")
		return
	}

	role, ok := domain.ParseRole(req.Role)
	if !ok {
		respondError(w, http.StatusBadRequest, "role must be farmer or doctor")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start registration")
		return
	}

	var userID int64
	err = tx.QueryRowx(`INSERT INTO users (username, email, password, role) VALUES (?, ?, ?, ?) RETURNING id`,
		req.Username, strings.ToLower(req.Email), hashed, string(role)).Scan(&userID)
	if err != nil {
		_ = tx.Rollback()
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	switch role {
	case domain.RoleFarmer:
		_, err = tx.Exec(`INSERT INTO farmer_profiles (user_id, farm_name, location) VALUES (?, ?, ?)`,
			userID, req.FarmName, req.Location)
	case domain.RoleDoctor:
		specialization := req.Specialization
		if specialization == "" {
			specialization = "General Veterinary"
		}
		_, err = tx.Exec(`INSERT INTO doctor_profiles (user_id, specialization, license_number) VALUES (?, ?, ?)`,
			userID, specialization, req.LicenseNumber)
	}
	if err != nil {
		_ = tx.Rollback()
		respondError(w, http.StatusInternalServerError, "unable to create profile")
		return
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete registration")
		return
	}

	token, err := h.generateToken(userID, role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token:     token,
		User:      domain.User{ID: userID, Username: req.Username, Email: strings.ToLower(req.Email), Role: role},
		Dashboard: role.Dashboard(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, password, role FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user, Dashboard: user.Role.Dashboard()})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	uid := currentUserID(r)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.Exec(`UPDATE users SET password = ? WHERE id = ?`, hashed, uid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

type meResponse struct {
	User          domain.User           `json:"user"`
	Dashboard     string                `json:"dashboard"`
	FarmerProfile *domain.FarmerProfile `json:"farmer_profile,omitempty"`
	DoctorProfile *domain.DoctorProfile `json:"doctor_profile,omitempty"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, role, created_at FROM users WHERE id = ?`, uid)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	resp := meResponse{User: user, Dashboard: user.Role.Dashboard()}
	switch user.Role {
	case domain.RoleFarmer:
		var profile domain.FarmerProfile
		if err := h.db.Get(&profile, `SELECT user_id, farm_name, location FROM farmer_profiles WHERE user_id = ?`, uid); err == nil {
			resp.FarmerProfile = &profile
		}
	case domain.RoleDoctor:
		var profile domain.DoctorProfile
		if err := h.db.Get(&profile, `SELECT user_id, specialization, license_number FROM doctor_profiles WHERE user_id = ?`, uid); err == nil {
			resp.DoctorProfile = &profile
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Cattle handlers

type cattleRequest struct {
	TagNumber           string  `json:"tag_number"`
	Name                string  `json:"name"`
	Breed               string  `json:"breed"`
	AgeYears            int64   `json:"age_years"`
	DailyMilkYield      float64 `json:"daily_milk_yield"`
	LastVaccinationDate string  `json:"last_vaccination_date"`
	IsSick              bool    `json:"is_sick"`
}

func (req *cattleRequest) validate() error {
	if req.TagNumber == "" || req.Name == "" || req.Breed == "" {
		return errors.New("tag_number, name and breed are required")
	}
	if req.AgeYears < 0 {
		return errors.New("age_years must not be negative")
	}
	if req.DailyMilkYield < 0 {
		return errors.New("daily_milk_yield must not be negative")
	}
	if req.LastVaccinationDate != "" {
		if _, err := time.Parse("2006-01-02", req.LastVaccinationDate); err != nil {
			return errors.New("last_vaccination_date must be in YYYY-MM-DD format")
		}
	}
	return nil
}

func (h *Handler) createCattle(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleFarmer) {
		return
	}
	var req cattleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ownerID := currentUserID(r)
	var id int64
	err := h.db.QueryRowx(`INSERT INTO cattle (owner_id, tag_number, name, breed, age_years, daily_milk_yield, last_vaccination_date, is_sick)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		ownerID, req.TagNumber, req.Name, req.Breed, req.AgeYears, req.DailyMilkYield, nullIfEmpty(req.LastVaccinationDate), req.IsSick).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create cattle record")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "tag_number": req.TagNumber, "name": req.Name})
}

func (h *Handler) listCattle(w http.ResponseWriter, r *http.Request) {
	ownerID := currentUserID(r)
	cattle := []domain.Cattle{}
	err := h.db.Select(&cattle, `SELECT id, owner_id, tag_number, name, breed, age_years, daily_milk_yield, last_vaccination_date, is_sick
                FROM cattle WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list cattle")
		return
	}
	respondJSON(w, http.StatusOK, cattle)
}

func (h *Handler) updateCattle(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleFarmer) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid cattle id")
		return
	}
	var req cattleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ownerID := currentUserID(r)
	var existing int64
	err = h.db.Get(&existing, `SELECT id FROM cattle WHERE id = ? AND owner_id = ?`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "cattle record not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cattle record")
		return
	}

	_, err = h.db.Exec(`UPDATE cattle SET tag_number = ?, name = ?, breed = ?, age_years = ?, daily_milk_yield = ?, last_vaccination_date = ?, is_sick = ?
                WHERE id = ?`,
		req.TagNumber, req.Name, req.Breed, req.AgeYears, req.DailyMilkYield, nullIfEmpty(req.LastVaccinationDate), req.IsSick, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update cattle record")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) listBreeds(w http.ResponseWriter, r *http.Request) {
	breeds := []domain.Breed{}
	if err := h.db.Select(&breeds, `SELECT id, name FROM breeds ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list breeds")
		return
	}
	respondJSON(w, http.StatusOK, breeds)
}

// Financial handlers

type financialRequest struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (h *Handler) createFinancialRecord(w http.ResponseWriter, r *http.Request) {
	var req financialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type != domain.RecordIncome && req.Type != domain.RecordExpense {
		respondError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be greater than zero")
		return
	}
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	uid := currentUserID(r)
	var id int64
	err := h.db.QueryRowx(`INSERT INTO financial_records (user_id, type, amount, description) VALUES (?, ?, ?, ?) RETURNING id`,
		uid, req.Type, req.Amount, req.Description).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create financial record")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "type": req.Type, "amount": req.Amount})
}

type performanceResponse struct {
	Records []domain.FinancialRecord `json:"records"`
	domain.FinancialSummary
}

func (h *Handler) financialPerformance(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	records := []domain.FinancialRecord{}
	err := h.db.Select(&records, `SELECT id, user_id, type, amount, description, created_at
                FROM financial_records WHERE user_id = ? ORDER BY created_at DESC, id DESC`, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load financial records")
		return
	}
	respondJSON(w, http.StatusOK, performanceResponse{
		Records:          records,
		FinancialSummary: domain.SummarizeFinances(records),
	})
}

// Inventory handlers

type inventoryItemView struct {
	domain.InventoryItem
	DaysRemaining      *float64 `json:"days_remaining"`
	DaysRemainingLabel string   `json:"days_remaining_label"`
	LowStock           bool     `json:"low_stock"`
}

func itemView(item domain.InventoryItem) inventoryItemView {
	view := inventoryItemView{
		InventoryItem:      item,
		DaysRemainingLabel: domain.DaysRemainingUnknown,
		LowStock:           item.LowStock(),
	}
	if days, ok := item.DaysRemaining(); ok {
		view.DaysRemaining = &days
		view.DaysRemainingLabel = fmt.Sprintf("%.1f days", days)
	}
	return view
}

type inventoryItemRequest struct {
	ItemName       string  `json:"item_name"`
	Quantity       float64 `json:"quantity"`
	ReorderLevel   float64 `json:"reorder_level"`
	DailyUsageRate float64 `json:"daily_usage_rate"`
}

func (h *Handler) createInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemName == "" {
		respondError(w, http.StatusBadRequest, "item_name is required")
		return
	}
	if req.Quantity < 0 || req.ReorderLevel < 0 || req.DailyUsageRate < 0 {
		respondError(w, http.StatusBadRequest, "quantity, reorder_level and daily_usage_rate must not be negative")
		return
	}

	uid := currentUserID(r)
	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start inventory creation")
		return
	}
	defer tx.Rollback()

	var itemID int64
	err = tx.QueryRowx(`INSERT INTO inventory_items (user_id, item_name, quantity, reorder_level, daily_usage_rate)
                VALUES (?, ?, ?, ?, ?) RETURNING id`,
		uid, req.ItemName, req.Quantity, req.ReorderLevel, req.DailyUsageRate).Scan(&itemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create inventory item")
		return
	}

	// Every item starts its life with a stock-in log entry.
	_, err = tx.Exec(`INSERT INTO inventory_history (item_id, action, quantity_changed, notes) VALUES (?, ?, ?, ?)`,
		itemID, domain.StockAdd, req.Quantity, "Initial Stock")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to record initial stock")
		return
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete inventory creation")
		return
	}

	item, err := h.getItem(itemID, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory item")
		return
	}
	respondJSON(w, http.StatusCreated, itemView(item))
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	items := []domain.InventoryItem{}
	err := h.db.Select(&items, `SELECT id, user_id, item_name, quantity, reorder_level, daily_usage_rate, last_updated
                FROM inventory_items WHERE user_id = ? ORDER BY id`, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list inventory")
		return
	}
	views := make([]inventoryItemView, len(items))
	for i, item := range items {
		views[i] = itemView(item)
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) getItem(id, userID int64) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := h.db.Get(&item, `SELECT id, user_id, item_name, quantity, reorder_level, daily_usage_rate, last_updated
                FROM inventory_items WHERE id = ? AND user_id = ?`, id, userID)
	return item, err
}

func (h *Handler) recentHistory(itemID int64) ([]domain.InventoryHistory, error) {
	history := []domain.InventoryHistory{}
	err := h.db.Select(&history, `SELECT id, item_id, action, quantity_changed, notes, created_at
                FROM inventory_history WHERE item_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, itemID, historyDisplayLimit)
	return history, err
}

type stockUpdateRequest struct {
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Notes    string  `json:"notes"`
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	var req stockUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Action != domain.StockAdd && req.Action != domain.StockConsume {
		respondError(w, http.StatusBadRequest, "action must be ADD or CONSUME")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	}

	uid := currentUserID(r)
	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start stock update")
		return
	}
	defer tx.Rollback()

	var item domain.InventoryItem
	err = tx.Get(&item, `SELECT id, user_id, item_name, quantity, reorder_level, daily_usage_rate, last_updated
                FROM inventory_items WHERE id = ? AND user_id = ?`, id, uid)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory item")
		return
	}

	newQty := item.Quantity
	switch req.Action {
	case domain.StockAdd:
		newQty += req.Quantity
	case domain.StockConsume:
		if item.Quantity < req.Quantity {
			// All or nothing: the quantity and the history stay untouched.
			_ = tx.Rollback()
			history, _ := h.recentHistory(item.ID)
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "not enough stock to consume this amount",
				"field":   "quantity",
				"item":    itemView(item),
				"history": history,
			})
			return
		}
		newQty -= req.Quantity
	}

	if _, err := tx.Exec(`UPDATE inventory_items SET quantity = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?`, newQty, item.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update stock")
		return
	}
	if _, err := tx.Exec(`INSERT INTO inventory_history (item_id, action, quantity_changed, notes) VALUES (?, ?, ?, ?)`,
		item.ID, req.Action, req.Quantity, req.Notes); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to record stock change")
		return
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete stock update")
		return
	}

	updated, err := h.getItem(item.ID, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "stock updated", "item": itemView(updated)})
}

func (h *Handler) inventoryHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	uid := currentUserID(r)
	item, err := h.getItem(id, uid)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "inventory item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inventory item")
		return
	}

	history, err := h.recentHistory(item.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item": itemView(item), "history": history})
}

// Connect handlers

type doctorView struct {
	ID             int64  `db:"id" json:"id"`
	Username       string `db:"username" json:"username"`
	Email          string `db:"email" json:"email"`
	Specialization string `db:"specialization" json:"specialization"`
	LicenseNumber  string `db:"license_number" json:"license_number"`
}

func (h *Handler) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors := []doctorView{}
	err := h.db.Select(&doctors, `SELECT u.id, u.username, u.email,
                COALESCE(d.specialization, 'General Veterinary') AS specialization,
                COALESCE(d.license_number, '') AS license_number
                FROM users u
                LEFT JOIN doctor_profiles d ON d.user_id = u.id
                WHERE u.role = ? ORDER BY u.username`, string(domain.RoleDoctor))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list doctors")
		return
	}
	respondJSON(w, http.StatusOK, doctors)
}

func (h *Handler) lookupUser(id int64) (domain.User, error) {
	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, role, created_at FROM users WHERE id = ?`, id)
	return user, err
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	otherID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	other, err := h.lookupUser(otherID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	uid := currentUserID(r)
	messages := []domain.Message{}
	err = h.db.Select(&messages, `SELECT id, sender_id, recipient_id, body, image_path, is_read, created_at
                FROM messages
                WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
                ORDER BY created_at ASC, id ASC`, uid, otherID, otherID, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load conversation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"other_user": other, "messages": messages})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	otherID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, err := h.lookupUser(otherID); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	// Both body and image are optional; an empty message is still accepted.
	var body string
	var imagePath *string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		body = r.FormValue("body")
		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			if h.media == nil {
				respondError(w, http.StatusInternalServerError, "attachments are not configured")
				return
			}
			rel, err := h.media.SaveChatImage(header.Filename, file)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "unable to store attachment")
				return
			}
			imagePath = &rel
		}
	} else {
		var req struct {
			Body string `json:"body"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		body = req.Body
	}

	uid := currentUserID(r)
	var message domain.Message
	err = h.db.QueryRowx(`INSERT INTO messages (sender_id, recipient_id, body, image_path) VALUES (?, ?, ?, ?)
                RETURNING id, created_at`,
		uid, otherID, nullIfEmpty(body), imagePath).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to send message")
		return
	}
	message.SenderID = uid
	message.RecipientID = otherID
	message.Body = nullIfEmpty(body)
	message.ImagePath = imagePath
	respondJSON(w, http.StatusCreated, message)
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	contacts := []domain.User{}
	err := h.db.Select(&contacts, `SELECT id, username, email, role, created_at FROM users
                WHERE id IN (
                    SELECT recipient_id FROM messages WHERE sender_id = ?
                    UNION
                    SELECT sender_id FROM messages WHERE recipient_id = ?
                )`, uid, uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load inbox")
		return
	}
	respondJSON(w, http.StatusOK, contacts)
}

// Helpers
func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

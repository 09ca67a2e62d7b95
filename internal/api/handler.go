package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tradebook/m/domain"
	"tradebook/m/internal/ledger"
)

type ctxKey string

const ctxUserID ctxKey = "userID"

// Handler bundles dependencies for HTTP handlers. Ledger operations go
// through the service; user accounts are handled directly against the
// database.
type Handler struct {
	db     *sqlx.DB
	svc    *ledger.Service
	secret string
	logger *zap.Logger
}

// New constructs a Handler.
func New(db *sqlx.DB, svc *ledger.Service, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, svc: svc, secret: secret, logger: logger}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.createPurchase)
			r.Get("/", h.listPurchases)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.createSale)
			r.Get("/", h.listSales)
			r.Patch("/{id}/payment", h.setSalePayment)
		})

		pr.Route("/payments", func(r chi.Router) {
			r.Post("/", h.recordPayment)
			r.Get("/", h.listPayments)
		})

		pr.Get("/dashboard", h.dashboard)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64) (string, error) {
	claims := authClaims{
		UserID: userID,
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
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth handlers

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var userID int64
	err = h.db.QueryRowx(`INSERT INTO users (name, email, password) VALUES (?, ?, ?) RETURNING id`,
		req.Name, strings.ToLower(req.Email), hashed).Scan(&userID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		h.logger.Error("unable to create user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to create user")
		return
	}

	token, err := h.generateToken(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{ID: int(userID), Name: req.Name, Email: strings.ToLower(req.Email)}})
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
	err := h.db.Get(&user, `SELECT id, name, email, password FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(int64(user.ID))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Purchase handlers

type purchaseRequest struct {
	Supplier string  `json:"supplier"`
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	purchase, err := h.svc.CreatePurchase(r.Context(), req.Supplier, req.Date, req.Quantity, req.Rate, req.Amount)
	if err != nil {
		h.respondLedgerError(w, err, "unable to create purchase")
		return
	}
	respondJSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.svc.ListPurchases(r.Context())
	if err != nil {
		h.respondLedgerError(w, err, "unable to list purchases")
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

// Sale handlers

type saleRequest struct {
	Customer        string  `json:"customer"`
	Date            string  `json:"date"`
	Quantity        float64 `json:"quantity"`
	Rate            float64 `json:"rate"`
	Amount          float64 `json:"amount"`
	PaymentReceived float64 `json:"payment_received"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), req.Customer, req.Date, req.Quantity, req.Rate, req.Amount, req.PaymentReceived)
	if err != nil {
		h.respondLedgerError(w, err, "unable to create sale")
		return
	}
	respondJSON(w, http.StatusCreated, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.svc.ListSales(r.Context())
	if err != nil {
		h.respondLedgerError(w, err, "unable to list sales")
		return
	}
	respondJSON(w, http.StatusOK, sales)
}

// setSalePayment is the administrative overwrite of a sale's received
// payment. It does not create a payment record; use POST /payments to record
// an actual payment.
func (h *Handler) setSalePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload struct {
		PaymentReceived *float64 `json:"payment_received"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PaymentReceived == nil {
		respondError(w, http.StatusBadRequest, "payment_received is required")
		return
	}
	sale, err := h.svc.SetSalePaymentReceived(r.Context(), id, *payload.PaymentReceived)
	if err != nil {
		h.respondLedgerError(w, err, "unable to update sale")
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

// Payment handlers

type paymentRequest struct {
	SaleID string  `json:"sale_id"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := h.svc.RecordPayment(r.Context(), req.SaleID, req.Date, req.Amount)
	if err != nil {
		h.respondLedgerError(w, err, "unable to record payment")
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.ListPayments(r.Context())
	if err != nil {
		h.respondLedgerError(w, err, "unable to list payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

// Dashboard

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.DashboardSnapshot(r.Context())
	if err != nil {
		h.respondLedgerError(w, err, "unable to build dashboard")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// respondLedgerError maps the ledger's error taxonomy onto HTTP statuses.
// Inconsistent state gets its own error body so it can never be mistaken for
// an ordinary failure, let alone success.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "sale not found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInconsistentState):
		h.logger.Error("ledger left inconsistent", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "payment recorded but sale update failed",
			"state": "inconsistent",
		})
	default:
		h.logger.Error(fallback, zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// Helpers

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

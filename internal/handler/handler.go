package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/guisedstore/storefront/internal/infrastructure/auth"
	service "github.com/guisedstore/storefront/internal/services"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
)

type Handler struct {
	auth     service.AuthService
	cart     service.CartService
	checkout service.CheckoutService
	wallet   service.WalletService
	product  service.ProductService
}

func NewHandler(
	auth service.AuthService,
	cart service.CartService,
	checkout service.CheckoutService,
	wallet service.WalletService,
	product service.ProductService,
) *Handler {
	return &Handler{
		auth:     auth,
		cart:     cart,
		checkout: checkout,
		wallet:   wallet,
		product:  product,
	}
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/products", h.ListProducts).Methods("GET")
	r.HandleFunc("/products/search", h.SearchProducts).Methods("GET")
	r.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/cart", h.GetCart).Methods("GET")
	r.HandleFunc("/cart", h.ClearCart).Methods("DELETE")
	r.HandleFunc("/cart/items", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/items/{itemId}", h.UpdateCartItem).Methods("PUT")
	r.HandleFunc("/cart/items/{itemId}", h.RemoveCartItem).Methods("DELETE")

	r.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	r.HandleFunc("/orders", h.ListOrders).Methods("GET")
	r.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	r.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST")

	r.HandleFunc("/wallet", h.GetWallet).Methods("GET")
	r.HandleFunc("/wallet/add", h.AddMoney).Methods("POST")
	r.HandleFunc("/wallet/deduct", h.DeductMoney).Methods("POST")
	r.HandleFunc("/wallet/transactions", h.ListTransactions).Methods("GET")

	r.HandleFunc("/products", h.CreateProduct).Methods("POST")
	r.HandleFunc("/products/{id}", h.UpdateProduct).Methods("PUT")
	r.HandleFunc("/products/{id}", h.DeleteProduct).Methods("DELETE")
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps business failures to stable statuses and messages;
// internal detail is never leaked to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrEmptyCart),
		errors.Is(err, pkgerrors.ErrInsufficientFunds):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, pkgerrors.ErrOrderNotFound),
		errors.Is(err, pkgerrors.ErrWalletNotFound),
		errors.Is(err, pkgerrors.ErrProductNotFound),
		errors.Is(err, pkgerrors.ErrCategoryNotFound),
		errors.Is(err, pkgerrors.ErrCartNotFound),
		errors.Is(err, pkgerrors.ErrCartItemNotFound),
		errors.Is(err, pkgerrors.ErrUserNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, pkgerrors.ErrUsernameExists),
		errors.Is(err, pkgerrors.ErrOrderNotCancellable),
		errors.Is(err, pkgerrors.ErrStaleState):
		status = http.StatusConflict
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// userID pulls the authenticated user out of the request context. Protected
// routes sit behind the auth middleware, so a miss means broken wiring.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return "", false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	userID, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

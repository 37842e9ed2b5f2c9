package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"memeperp/internal/service"
)

// UserHandler обрабатывает регистрацию пользователей.
//
// Endpoints:
// - POST /api/v1/users
//
// Полноценная аутентификация (сессии, токены) живет снаружи,
// здесь только bootstrap аккаунта с хешированием пароля
type UserHandler struct {
	userService service.UserServiceInterface
}

// NewUserHandler создает новый UserHandler с внедрением зависимостей
func NewUserHandler(userService service.UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

// createUserRequest - тело запроса регистрации
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUser регистрирует пользователя со стартовым балансом
// POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrInvalidPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username already taken")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

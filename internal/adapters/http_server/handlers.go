package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"kuex/internal/app"
	"kuex/internal/domain"
)

type Handlers struct {
	Reports *app.ReportService
	Schools *app.SchoolService
	Auth    *app.AuthService
	Mypage  *app.MypageService

	// PublicURL is the site base used in password-reset links.
	PublicURL string

	validate *validator.Validate
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, tokens *app.Tokens) {
	h.validate = validator.New(validator.WithRequiredStructEnabled())

	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(m chi.Router) {
		m.Use(Identity(tokens))

		m.Get("/v1/reports", h.listReports)
		m.Get("/v1/reports/{id}", h.getReport)
		m.Post("/v1/reports/{id}/like", h.toggleLike)
		m.Get("/v1/reports/{id}/like", h.likeStatus)

		m.Get("/v1/schools", h.listSchools)
		m.Get("/v1/schools/locations", h.schoolLocations)
		m.Get("/v1/schools/{id}", h.getSchool)

		m.Post("/v1/auth/email/request", h.requestEmailCode)
		m.Post("/v1/auth/email/verify", h.verifyEmail)
		m.Post("/v1/auth/register", h.register)
		m.Post("/v1/auth/login", h.login)
		m.Post("/v1/auth/logout", h.logout)
		m.Post("/v1/auth/password-reset/request", h.requestPasswordReset)
		m.Post("/v1/auth/password-reset/validate", h.validateResetToken)
		m.Post("/v1/auth/password-reset/confirm", h.confirmPasswordReset)

		m.Get("/v1/mypage", h.mypage)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps domain sentinel errors onto HTTP problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrBadEmailDomain),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidToken):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, domain.ErrEmailNotVerified):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrResendThrottled):
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func (h *Handlers) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	return h.validate.Struct(dst)
}

// requestUser resolves identity: the Bearer token wins, else an explicit
// userId query parameter (listing endpoints accept unauthenticated callers
// that still want like flags).
func requestUser(r *http.Request) string {
	if uid := UserID(r); uid != "" {
		return uid
	}
	return r.URL.Query().Get("userId")
}

// ---- reports ----

func (h *Handlers) listReports(w http.ResponseWriter, r *http.Request) {
	req := app.ParseListRequest(r.URL.Query())

	if req.Filters.SchoolsOnly {
		metas, err := h.Reports.ReportSchools(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"schools": metas})
		return
	}

	page, err := h.Reports.ListReports(r.Context(), req, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Reports.GetReport(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) toggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reports.ToggleLike(r.Context(), chi.URLParam(r, "id"), UserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) likeStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reports.LikeStatus(r.Context(), chi.URLParam(r, "id"), UserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- schools ----

func (h *Handlers) listSchools(w http.ResponseWriter, r *http.Request) {
	page, err := h.Schools.ListSchools(r.Context(), app.ParseSchoolListRequest(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) schoolLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Schools.Locations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (h *Handlers) getSchool(w http.ResponseWriter, r *http.Request) {
	view, err := h.Schools.GetSchool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ---- auth ----

type emailRequestBody struct {
	Email string `json:"email" validate:"required,email"`
}

type emailVerifyBody struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetRequestBody struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=1,max=64"`
}

type resetTokenBody struct {
	Token string `json:"token" validate:"required,len=64,hexadecimal"`
}

type resetConfirmBody struct {
	Token       string `json:"token" validate:"required,len=64,hexadecimal"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

func (h *Handlers) requestEmailCode(w http.ResponseWriter, r *http.Request) {
	var body emailRequestBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	res, err := h.Auth.RequestEmailCode(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body emailVerifyBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Auth.VerifyEmail(r.Context(), body.Email, body.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	p, err := h.Auth.Register(r.Context(), app.RegisterInput{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": p})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	token, p, err := h.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": p})
}

// logout is stateless: tokens are short-lived bearer credentials and the
// client discards its copy. The endpoint exists so clients have a uniform
// auth surface.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body resetRequestBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	res, err := h.Auth.RequestPasswordReset(r.Context(), body.Email, body.Name, h.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) validateResetToken(w http.ResponseWriter, r *http.Request) {
	var body resetTokenBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Auth.ValidateResetToken(r.Context(), body.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handlers) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body resetConfirmBody
	if err := h.decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Auth.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ---- mypage ----

func (h *Handlers) mypage(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r)
	if uid == "" {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	data, err := h.Mypage.Mypage(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

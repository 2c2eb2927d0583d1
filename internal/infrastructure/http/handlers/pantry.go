package handlers

import (
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/infrastructure/http/middleware"
	"github.com/ecofridge/server/internal/ports/inbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// imageField is the multipart form field carrying a scan photo
const imageField = "image"

// PantryHandlers serves the inventory, recipe and profile routes
type PantryHandlers struct {
	service        inbound.PantryService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewPantryHandlers creates the handlers. maxUploadBytes bounds every
// request body.
func NewPantryHandlers(service inbound.PantryService, maxUploadBytes int64, logger *zap.Logger) *PantryHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &PantryHandlers{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("handlers"),
	}
}

// Routes mounts the API on r
func (h *PantryHandlers) Routes(r chi.Router) {
	r.Post("/scan", h.Scan)
	r.Post("/insert", h.Insert)

	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.ListInventory)
		r.Post("/", h.IngestInventory)
	})

	r.Get("/generate", h.Generate)
	r.Post("/generate", h.Generate)

	r.Get("/recipes", h.ListRecipes)
	r.Post("/recipes/{name}/confirm", h.ConfirmRecipe)
	r.Post("/proposals/{id}/confirm", h.ConfirmProposal)

	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Post("/", h.SetProfile)
	})
}

// scanRequest is the JSON form of an upload: a base64 photo
type scanRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

// ingestRequest carries ingredients to merge into the inventory
type ingestRequest struct {
	Ingredients []inventory.Ingredient `json:"ingredients"`
}

// Scan handles POST /api/v1/scan: detect ingredients without storing them
func (h *PantryHandlers) Scan(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.readScan(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	detected, err := h.service.ScanIngredients(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"ingredients": detected})
}

// Insert handles POST /api/v1/insert: detect ingredients and merge them
func (h *PantryHandlers) Insert(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.readScan(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ScanAndIngest(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// ListInventory handles GET /api/v1/inventory
func (h *PantryHandlers) ListInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.ListInventory(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if inv == nil {
		inv = inventory.Inventory{}
	}
	writeData(w, http.StatusOK, inv)
}

// IngestInventory handles POST /api/v1/inventory
func (h *PantryHandlers) IngestInventory(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.IngestIngredients(r.Context(), inbound.IngestCommand{
		TenantID:    middleware.TenantFromContext(r.Context()),
		Ingredients: req.Ingredients,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// Generate handles GET|POST /api/v1/generate. The result is a proposal;
// nothing is stored until it is confirmed.
func (h *PantryHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateRecipe(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// ListRecipes handles GET /api/v1/recipes
func (h *PantryHandlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.service.ListRecipes(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, recipes)
}

// ConfirmRecipe handles POST /api/v1/recipes/{name}/confirm
func (h *PantryHandlers) ConfirmRecipe(w http.ResponseWriter, r *http.Request) {
	var cmd inbound.ConfirmCommand
	if err := h.decodeJSON(w, r, &cmd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cmd.TenantID = middleware.TenantFromContext(r.Context())
	cmd.RecipeName = chi.URLParam(r, "name")

	result, err := h.service.ConfirmRecipe(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, confirmStatus(result), result)
}

// ConfirmProposal handles POST /api/v1/proposals/{id}/confirm
func (h *PantryHandlers) ConfirmProposal(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ConfirmProposal(r.Context(),
		middleware.TenantFromContext(r.Context()),
		chi.URLParam(r, "id"),
	)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, confirmStatus(result), result)
}

// GetProfile handles GET /api/v1/profile
func (h *PantryHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// SetProfile handles POST /api/v1/profile
func (h *PantryHandlers) SetProfile(w http.ResponseWriter, r *http.Request) {
	var cmd inbound.SetProfileCommand
	if err := h.decodeJSON(w, r, &cmd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cmd.TenantID = middleware.TenantFromContext(r.Context())

	p, err := h.service.SetProfile(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// confirmStatus is 201 for a fresh confirmation and 200 for a replay
func confirmStatus(result *inbound.ConfirmResult) int {
	if result.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (h *PantryHandlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return apperrors.NewBadRequestError("request body is empty")
		}
		return bodyError(err)
	}
	return nil
}

// readScan accepts a multipart upload, a JSON body with a base64 photo or
// a raw image body.
func (h *PantryHandlers) readScan(w http.ResponseWriter, r *http.Request) (inbound.ScanCommand, error) {
	cmd := inbound.ScanCommand{TenantID: middleware.TenantFromContext(r.Context())}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			return cmd, bodyError(err)
		}
		file, header, err := r.FormFile(imageField)
		if err != nil {
			return cmd, apperrors.NewBadRequestError(fmt.Sprintf("missing %q file field", imageField))
		}
		defer file.Close()

		if cmd.Image, err = io.ReadAll(file); err != nil {
			return cmd, bodyError(err)
		}
		cmd.MIMEType = header.Header.Get("Content-Type")

	case mediaType == "application/json":
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return cmd, bodyError(err)
		}
		image, err := decodeBase64Image(req.Image)
		if err != nil {
			return cmd, apperrors.NewBadRequestError("image is not valid base64")
		}
		cmd.Image = image
		cmd.MIMEType = req.MIMEType

	case strings.HasPrefix(mediaType, "image/"):
		image, err := io.ReadAll(r.Body)
		if err != nil {
			return cmd, bodyError(err)
		}
		cmd.Image = image
		cmd.MIMEType = mediaType

	default:
		return cmd, apperrors.NewBadRequestError("expected multipart/form-data, application/json or an image/* body")
	}

	if len(cmd.Image) == 0 {
		return cmd, apperrors.NewBadRequestError("image is empty")
	}
	if cmd.MIMEType == "" || cmd.MIMEType == "application/octet-stream" {
		cmd.MIMEType = http.DetectContentType(cmd.Image)
	}
	return cmd, nil
}

// decodeBase64Image accepts plain base64 or a data URL
func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return apperrors.NewAppError(apperrors.CodeBadRequest, "request body too large",
			fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
	}
	return apperrors.NewBadRequestError("malformed request body").WithCause(err)
}

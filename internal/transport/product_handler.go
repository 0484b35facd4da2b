package transport

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"
	"storefront/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// multipartOverhead allows for form fields and boundaries on top of the image itself
const multipartOverhead = 1 << 20

// CreateProductRequest represents the JSON product creation payload
type CreateProductRequest struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	StockQuantity FlexInt          `json:"stock_quantity" validate:"gte=0"`
	ImageURL      string           `json:"image_url" validate:"max=500"`
}

// UpdateProductRequest is a partial product update; absent fields are unchanged
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=255"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *FlexInt         `json:"stock_quantity" validate:"omitempty,gte=0"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,max=500"`
}

// ProductHandler handles catalog requests
type ProductHandler struct {
	handlerBase
	catalog        service.CatalogService
	maxUploadBytes int64
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, maxUploadBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		handlerBase:    handlerBase{logger: logger},
		catalog:        catalog,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/image", h.CreateWithImage)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/image", h.AttachImage)
	})
}

// List returns products, filtered by the optional search query parameter
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	product, err := h.catalog.Create(r.Context(), service.ProductInput{
		Name:          req.Name,
		Price:         *req.Price,
		StockQuantity: int(req.StockQuantity),
		ImageURL:      req.ImageURL,
	}, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// CreateWithImage creates a product from a multipart form with fields
// name, price, stock_quantity and an optional image file
func (h *ProductHandler) CreateWithImage(w http.ResponseWriter, r *http.Request) {
	image, cleanup, err := h.parseImageForm(w, r, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cleanup()

	input, err := productInputFromForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	product, err := h.catalog.Create(r.Context(), input, image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// AttachImage replaces the image of an existing product
func (h *ProductHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	image, cleanup, err := h.parseImageForm(w, r, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cleanup()

	product, err := h.catalog.AttachImage(r.Context(), id, *image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	product, err := h.catalog.Update(r.Context(), id, domain.ProductPatch{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: optionalInt(req.StockQuantity),
		ImageURL:      req.ImageURL,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseImageForm reads the multipart body and returns the "image" file.
// The returned upload is nil when the file is absent and not required.
func (h *ProductHandler) parseImageForm(w http.ResponseWriter, r *http.Request, required bool) (*storage.Upload, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, domain.ErrImageTooLarge
		}
		return nil, noop, domain.NewError(domain.ErrValidation, "Invalid multipart form")
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			cleanup()
			return nil, noop, domain.NewError(domain.ErrValidation, "image file is required")
		}
		return nil, cleanup, nil
	}
	if err != nil {
		cleanup()
		return nil, noop, domain.NewError(domain.ErrValidation, "Invalid image file")
	}

	upload := &storage.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

func productInputFromForm(r *http.Request) (service.ProductInput, error) {
	var input service.ProductInput

	input.Name = strings.TrimSpace(r.FormValue("name"))
	if input.Name == "" {
		return input, domain.NewError(domain.ErrValidation, "name is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		return input, domain.NewError(domain.ErrValidation, "price must be a number")
	}
	input.Price = price

	if raw := strings.TrimSpace(r.FormValue("stock_quantity")); raw != "" {
		stock, err := parseInteger(raw)
		if err != nil {
			return input, domain.NewError(domain.ErrValidation, "stock_quantity must be an integer")
		}
		input.StockQuantity = int(stock)
	}
	return input, nil
}

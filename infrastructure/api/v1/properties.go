package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/infrastructure/api/middleware"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
)

// PropertiesRouter serves stored property records.
type PropertiesRouter struct {
	records property.RecordReader
	logger  *slog.Logger
}

// NewPropertiesRouter creates a new PropertiesRouter.
func NewPropertiesRouter(records property.RecordReader, logger *slog.Logger) *PropertiesRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertiesRouter{records: records, logger: logger}
}

// Routes returns the chi router for property endpoints.
func (r *PropertiesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Get("/{id}", r.Get)

	return router
}

// List handles GET /properties. Supported filters are location,
// seller_type, min_price and max_price, plus page and page_size.
func (r *PropertiesRouter) List(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	pagination := ParsePagination(req)

	opts := pagination.Options()
	if v := strings.TrimSpace(q.Get("location")); v != "" {
		opts = append(opts, property.WithLocation(v))
	}
	if v := strings.TrimSpace(q.Get("seller_type")); v != "" {
		opts = append(opts, property.WithSellerType(v))
	}
	for _, bound := range []struct {
		key string
		opt func(float64) property.ListOption
	}{
		{"min_price", property.WithMinPrice},
		{"max_price", property.WithMaxPrice},
	} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			middleware.WriteError(w, req, middleware.BadRequest(bound.key+" must be a number", err), r.logger)
			return
		}
		opts = append(opts, bound.opt(price))
	}

	records, err := r.records.List(req.Context(), property.NewListFilter(opts...))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if records == nil {
		records = []property.Record{}
	}

	middleware.WriteJSON(w, http.StatusOK, dto.PropertyListResponse{
		Data: records,
		Meta: pagination.Meta(len(records)),
	})
}

// Get handles GET /properties/{id}.
func (r *PropertiesRouter) Get(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	record, err := r.records.Find(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, record)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"batard/internal/database"
	"batard/internal/models"
)

// handleCategoryCollection lists categories publicly and lets an admin
// create one.
// GET|POST /api/catalog/categories
func (s *HTTPServer) handleCategoryCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.catalog.GetCategories(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if categories == nil {
			categories = []models.Category{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})

	case http.MethodPost:
		s.requireAdmin(s.handleCreateCategory)(w, r)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.catalog.CreateCategory(r.Context(), &c); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleCategoryResource reads or rewrites one category.
// GET /api/catalog/categories/{id} | PUT (admin)
func (s *HTTPServer) handleCategoryResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r.URL.Path, "/api/catalog/categories/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.catalog.GetCategoryByID(r.Context(), id)
		if errors.Is(err, database.ErrNoRecord) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)

	case http.MethodPut:
		s.requireAdmin(func(w http.ResponseWriter, r *http.Request) {
			var c models.Category
			decoder := json.NewDecoder(r.Body)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&c); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			c.ID = id
			if err := s.catalog.UpdateCategory(r.Context(), &c); errors.Is(err, database.ErrNoRecord) {
				writeError(w, http.StatusNotFound, "category not found")
				return
			} else if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		})(w, r)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProductCollection lists products publicly (active only by default)
// and lets an admin create one.
// GET /api/catalog/products?all=true | POST (admin)
func (s *HTTPServer) handleProductCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("all") != "true"
		products, err := s.catalog.GetProducts(r.Context(), activeOnly)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})

	case http.MethodPost:
		s.requireAdmin(s.handleCreateProduct)(w, r)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if p.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	if _, err := s.catalog.GetCategoryByID(r.Context(), p.CategoryID); errors.Is(err, database.ErrNoRecord) {
		writeError(w, http.StatusBadRequest, "one or more category references do not exist")
		return
	} else if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if err := s.catalog.CreateProduct(r.Context(), &p); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleProductResource reads or rewrites one product.
// GET /api/catalog/products/{id} | PUT (admin)
func (s *HTTPServer) handleProductResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r.URL.Path, "/api/catalog/products/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.catalog.GetProductByID(r.Context(), id)
		if errors.Is(err, database.ErrNoRecord) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		s.requireAdmin(func(w http.ResponseWriter, r *http.Request) {
			var p models.Product
			decoder := json.NewDecoder(r.Body)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			p.ID = id
			if err := s.catalog.UpdateProduct(r.Context(), &p); errors.Is(err, database.ErrNoRecord) {
				writeError(w, http.StatusNotFound, "product not found")
				return
			} else if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
		})(w, r)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func pathID(w http.ResponseWriter, path, prefix string) (int64, bool) {
	idStr := strings.TrimPrefix(path, prefix)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return id, true
}

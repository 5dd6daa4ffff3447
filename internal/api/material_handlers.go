package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

const (
	defaultMaterialLimit = 100
	maxMaterialLimit     = 1000
)

type materialDTO struct {
	ID               int64    `json:"id"`
	Key              string   `json:"key"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer"`
	ColorName        string   `json:"color_name,omitempty"`
	MaterialType     string   `json:"material_type,omitempty"`
	ColorHex         string   `json:"color_hex,omitempty"`
	TransmittanceHex string   `json:"td_hex,omitempty"`
	BedTemp          string   `json:"bed_temp,omitempty"`
	HotendTemp       string   `json:"hotend_temp,omitempty"`
	Transparent      bool     `json:"transparent"`
	Glitter          bool     `json:"glitter"`
	Glow             bool     `json:"glow"`
	Notes            string   `json:"notes,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	Tags             []string `json:"tags"`
}

// listMaterials handles GET /v1/materials?q=&type=&manufacturer=&transmittance=&limit=&offset=.
// With ?key= it returns the single matching record or 404.
func (s *Server) listMaterials(w http.ResponseWriter, r *http.Request) {
	if key := strings.TrimSpace(r.URL.Query().Get("key")); key != "" {
		s.getMaterial(w, r, key)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := s.deps.Records.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list materials failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list materials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"materials": toMaterialDTOs(recs),
		"count":     len(recs),
	})
}

func (s *Server) getMaterial(w http.ResponseWriter, r *http.Request, key string) {
	rec, err := s.deps.Records.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "material not found")
			return
		}
		s.logger.Error("get material failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load material")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"material": toMaterialDTO(rec)})
}

func (s *Server) listManufacturers(w http.ResponseWriter, r *http.Request) {
	s.distinct(w, r, "manufacturers", s.deps.Records.Manufacturers)
}

func (s *Server) listMaterialTypes(w http.ResponseWriter, r *http.Request) {
	s.distinct(w, r, "material_types", s.deps.Records.MaterialTypes)
}

func (s *Server) distinct(w http.ResponseWriter, r *http.Request, field string, load func(context.Context) ([]string, error)) {
	values, err := load(r.Context())
	if err != nil {
		s.logger.Error("list distinct values failed", zap.String("field", field), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list "+strings.ReplaceAll(field, "_", " "))
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{field: values})
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	limit, offset, err := parseLimitOffset(r, defaultMaterialLimit, maxMaterialLimit)
	if err != nil {
		return catalog.Filter{}, err
	}
	filter := catalog.Filter{
		Query:        strings.TrimSpace(q.Get("q")),
		MaterialType: strings.TrimSpace(q.Get("type")),
		Manufacturer: strings.TrimSpace(q.Get("manufacturer")),
		Limit:        limit,
		Offset:       offset,
	}
	if raw := q.Get("transmittance"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return catalog.Filter{}, errors.New("invalid transmittance")
		}
		filter.HasTransmittance = &val
	}
	return filter, nil
}

func toMaterialDTOs(in []catalog.MaterialRecord) []materialDTO {
	out := make([]materialDTO, 0, len(in))
	for _, rec := range in {
		out = append(out, toMaterialDTO(rec))
	}
	return out
}

func toMaterialDTO(rec catalog.MaterialRecord) materialDTO {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return materialDTO{
		ID:               rec.ID,
		Key:              rec.Key,
		Name:             rec.Name,
		Manufacturer:     rec.Manufacturer,
		ColorName:        rec.ColorName,
		MaterialType:     rec.MaterialType,
		ColorHex:         rec.ColorHex(),
		TransmittanceHex: rec.TransmittanceHex(),
		BedTemp:          rec.BedTemp,
		HotendTemp:       rec.HotendTemp,
		Transparent:      rec.Transparent,
		Glitter:          rec.Glitter,
		Glow:             rec.Glow,
		Notes:            rec.Notes,
		ImageURL:         rec.ImageURL,
		Tags:             tags,
	}
}

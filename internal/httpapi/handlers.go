package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/datanaker/skkni-cache/internal/db"
)

const (
	sourceCache = "cache"
	sourceFresh = "fresh"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchDocuments(c echo.Context) error {
	filter, fieldErrors := parseDocumentFilter(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	forceRefresh := parseBool(c.QueryParam("force_refresh"))
	served, err := s.maybeRefresh(c.Request().Context(), documentFilterIsEmpty(filter), forceRefresh)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache refresh failed")
		return internalError(c, "Failed to refresh cache")
	}

	rows, total, err := s.pool.SearchDocuments(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("search documents failed")
		return internalError(c, "Failed to search documents")
	}

	return success(c, map[string]any{
		"count":  total,
		"items":  rows,
		"source": served,
	})
}

func (s *Server) handleSearchUnits(c echo.Context) error {
	filter, fieldErrors := parseUnitFilter(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	forceRefresh := parseBool(c.QueryParam("force_refresh"))
	served, err := s.maybeRefresh(c.Request().Context(), unitFilterIsEmpty(filter), forceRefresh)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache refresh failed")
		return internalError(c, "Failed to refresh cache")
	}

	rows, total, err := s.pool.SearchUnits(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("search units failed")
		return internalError(c, "Failed to search units")
	}

	return success(c, map[string]any{
		"count":  total,
		"items":  rows,
		"source": served,
	})
}

// maybeRefresh applies the cache-first policy. Filtered requests always
// serve from cache; unfiltered requests refresh when the cache is empty or
// stale, or when the caller forces it. Returns which source served the
// request.
func (s *Server) maybeRefresh(ctx context.Context, unfiltered, force bool) (string, error) {
	if s.refresher == nil || !unfiltered {
		return sourceCache, nil
	}

	refresh := force
	if !refresh {
		newest, err := s.pool.NewestDocumentUpdate(ctx)
		if err != nil {
			return sourceCache, err
		}
		refresh = db.NeedsRefresh(newest, s.opts.CacheTTLDays)
	}
	if !refresh {
		return sourceCache, nil
	}

	if err := s.refresher.Refresh(ctx); err != nil {
		// A stale cache still beats an error page when upstream is down.
		count, countErr := s.pool.CountDocuments(ctx)
		if countErr == nil && count > 0 {
			s.logger.Warn().Err(err).Msg("refresh failed, serving stale cache")
			return sourceCache, nil
		}
		return sourceCache, err
	}
	return sourceFresh, nil
}

func (s *Server) handleSectors(c echo.Context) error {
	limit, offset, fieldErrors := parsePage(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rows, total, err := s.pool.ListSectors(c.Request().Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("list sectors failed")
		return internalError(c, "Failed to load sectors")
	}
	return success(c, map[string]any{
		"count": total,
		"items": rows,
	})
}

func (s *Server) handleSectorFields(c echo.Context) error {
	sectorID, err := parseIDParam(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": "must be a positive integer"})
	}
	limit, offset, fieldErrors := parsePage(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rows, total, listErr := s.pool.ListFields(c.Request().Context(), sectorID, limit, offset)
	if listErr != nil {
		s.logger.Error().Err(listErr).Int64("sector_id", sectorID).Msg("list fields failed")
		return internalError(c, "Failed to load fields")
	}
	return success(c, map[string]any{
		"count": total,
		"items": rows,
	})
}

func (s *Server) handleFieldSubFields(c echo.Context) error {
	fieldID, err := parseIDParam(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": "must be a positive integer"})
	}
	limit, offset, fieldErrors := parsePage(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	rows, total, listErr := s.pool.ListSubFields(c.Request().Context(), fieldID, limit, offset)
	if listErr != nil {
		s.logger.Error().Err(listErr).Int64("field_id", fieldID).Msg("list sub-fields failed")
		return internalError(c, "Failed to load sub-fields")
	}
	return success(c, map[string]any{
		"count": total,
		"items": rows,
	})
}

func parseDocumentFilter(c echo.Context) (db.DocumentFilter, map[string]string) {
	fieldErrors := map[string]string{}

	limit, offset, pageErrors := parsePage(c)
	for k, v := range pageErrors {
		fieldErrors[k] = v
	}

	filter := db.DocumentFilter{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Sector:   strings.TrimSpace(c.QueryParam("sektor")),
		Field:    strings.TrimSpace(c.QueryParam("bidang")),
		SubField: strings.TrimSpace(c.QueryParam("sub_bidang")),
		Year:     strings.TrimSpace(c.QueryParam("tahun")),
		Limit:    limit,
		Offset:   offset,
	}
	filter.SectorID = parseOptionalID(c.QueryParam("sector_id"), "sector_id", fieldErrors)
	filter.FieldID = parseOptionalID(c.QueryParam("field_id"), "field_id", fieldErrors)
	filter.SubFieldID = parseOptionalID(queryAlias(c, "subfield_id", "sub_field_id"), "subfield_id", fieldErrors)
	return filter, fieldErrors
}

func parseUnitFilter(c echo.Context) (db.UnitFilter, map[string]string) {
	fieldErrors := map[string]string{}

	limit, offset, pageErrors := parsePage(c)
	for k, v := range pageErrors {
		fieldErrors[k] = v
	}

	filter := db.UnitFilter{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Sector:   strings.TrimSpace(c.QueryParam("sektor")),
		Field:    strings.TrimSpace(c.QueryParam("bidang")),
		SubField: strings.TrimSpace(c.QueryParam("sub_bidang")),
		Year:     strings.TrimSpace(c.QueryParam("tahun")),
		DocUUID:  strings.TrimSpace(c.QueryParam("doc_uuid")),
		Limit:    limit,
		Offset:   offset,
	}
	filter.SectorID = parseOptionalID(c.QueryParam("sector_id"), "sector_id", fieldErrors)
	filter.FieldID = parseOptionalID(c.QueryParam("field_id"), "field_id", fieldErrors)
	filter.SubFieldID = parseOptionalID(queryAlias(c, "subfield_id", "sub_field_id"), "subfield_id", fieldErrors)
	return filter, fieldErrors
}

// queryAlias returns the first non-empty query parameter among names.
func queryAlias(c echo.Context, names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(c.QueryParam(name)); value != "" {
			return value
		}
	}
	return ""
}

func documentFilterIsEmpty(f db.DocumentFilter) bool {
	return f.Query == "" && f.Sector == "" && f.Field == "" && f.SubField == "" &&
		f.Year == "" && f.SectorID <= 0 && f.FieldID <= 0 && f.SubFieldID <= 0
}

func unitFilterIsEmpty(f db.UnitFilter) bool {
	return f.Query == "" && f.Sector == "" && f.Field == "" && f.SubField == "" &&
		f.Year == "" && f.DocUUID == "" && f.SectorID <= 0 && f.FieldID <= 0 && f.SubFieldID <= 0
}

func parsePage(c echo.Context) (limit, offset int, fieldErrors map[string]string) {
	fieldErrors = map[string]string{}

	limit, err := parsePositiveInt(c.QueryParam("limit"), 20, 1, 200)
	if err != nil {
		fieldErrors["limit"] = err.Error()
	}
	offset, err = parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		fieldErrors["offset"] = err.Error()
	}
	return limit, offset, fieldErrors
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return def, fmt.Errorf("must be an integer")
	}
	if value < min || value > max {
		return def, fmt.Errorf("must be between %d and %d", min, max)
	}
	return value, nil
}

func parseOptionalID(raw, name string, fieldErrors map[string]string) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || value < 1 {
		fieldErrors[name] = "must be a positive integer"
		return 0
	}
	return value
}

func parseIDParam(raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return value, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

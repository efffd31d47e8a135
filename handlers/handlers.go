package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/maomaocong/audio-scene-api/utils"
)

// decodeAndValidate decodes a JSON body into dst and runs struct
// validation. A false return means the response is already written.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		message := "Validation failed"
		if fields := utils.GetValidationFields(err); len(fields) > 0 {
			parts := make([]string, 0, len(fields))
			for field, problem := range fields {
				parts = append(parts, field+": "+problem)
			}
			sort.Strings(parts)
			message = "Validation failed: " + strings.Join(parts, "; ")
		}
		_ = utils.WriteBadRequest(w, message)
		return false
	}
	return true
}

// pageParams reads page and pageSize from the query string. Values
// that fail to parse fall back to defaults instead of failing the
// request; range clamping happens at the repository.
func pageParams(r *http.Request) (page, pageSize int) {
	page = intQuery(r, "page", 1)
	pageSize = intQuery(r, "pageSize", 20)
	return page, pageSize
}

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

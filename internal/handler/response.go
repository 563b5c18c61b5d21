package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/forgo/occasions/api/internal/model"
)

// DataResponse wraps a successful response with optional HATEOAS links
type DataResponse struct {
	Data  interface{}       `json:"data"`
	Links map[string]string `json:"_links,omitempty"`
}

// CollectionResponse wraps a collection response
type CollectionResponse struct {
	Data  interface{}       `json:"data"`
	Count int               `json:"count"`
	Links map[string]string `json:"_links,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a successful data response
func WriteData(w http.ResponseWriter, status int, data interface{}, links map[string]string) {
	response := DataResponse{
		Data:  data,
		Links: links,
	}
	WriteJSON(w, status, response)
}

// WriteCollection writes a collection response
func WriteCollection(w http.ResponseWriter, status int, data interface{}, count int, links map[string]string) {
	response := CollectionResponse{
		Data:  data,
		Count: count,
		Links: links,
	}
	WriteJSON(w, status, response)
}

// WriteError writes an error response using RFC 9457 Problem Details
func WriteError(w http.ResponseWriter, err *model.ProblemDetails) {
	err.WriteJSON(w)
}

// DecodeJSON decodes a JSON request body into the given struct
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// recordPathID reads path parameter param (e.g. "groupId") as a record ID in
// table. A bare key gets the table prefix. IDs naming another table are
// rejected so a route can never reach records outside its own table.
func recordPathID(w http.ResponseWriter, r *http.Request, param, table string) (string, bool) {
	id, ok := recordID(r.PathValue(param), table)
	if !ok {
		WriteError(w, model.NewBadRequestError("invalid "+strings.TrimSuffix(param, "Id")+" id"))
		return "", false
	}
	return id, true
}

// recordID qualifies id with table, or reports false when id is empty or
// belongs to another table.
func recordID(id, table string) (string, bool) {
	key := strings.TrimPrefix(id, table+":")
	if key == "" || strings.Contains(key, ":") {
		return "", false
	}
	return table + ":" + key, true
}

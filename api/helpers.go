package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/votara/votara-coordinator/log"
)

// envelope is the uniform success response shape: {success:true, data:...},
// with pagination on list endpoints.
type envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination carries list paging metadata alongside the data payload.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// httpWriteJSON helper function writes a success envelope around data.
func httpWriteJSON(w http.ResponseWriter, data interface{}) {
	httpWriteEnvelope(w, &envelope{Success: true, Data: data})
}

// httpWriteList writes a success envelope with pagination metadata.
func httpWriteList(w http.ResponseWriter, data interface{}, p *Pagination) {
	httpWriteEnvelope(w, &envelope{Success: true, Data: data, Pagination: p})
}

func httpWriteEnvelope(w http.ResponseWriter, e *envelope) {
	w.Header().Set("Content-Type", "application/json")
	jdata, err := json.Marshal(e)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	httpWriteJSON(w, map[string]bool{"ok": true})
}

package settings

import (
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
)

// Endpoint exposes the runtime settings. Anyone can read them, writing is
// reserved for admins by the route setup. Reads and writes go straight at the
// store, there is no domain logic to dispatch to.
type Endpoint struct {
	store *Store
}

func NewEndpoint(store *Store) *Endpoint {
	return &Endpoint{store: store}
}

func (e *Endpoint) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	core.WriteOK(w, r, e.store.Snapshot())
}

func (e *Endpoint) HandleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	body, err := core.RequestBody[struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	if err := e.store.Set(body.Key, body.Value); err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

// Package http expone el admin de solo lectura del stripe: readiness, métricas
// y vistas del cluster, los stores y los clientes.
package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/dropDatabas3/clustertier/internal/entity"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Cluster es lo que el admin necesita del stripe.
type Cluster interface {
	Active() *entity.Active
	Passives() []*entity.Passive
}

// Deps agrupa las dependencias del router.
type Deps struct {
	Cluster Cluster
	Metrics http.Handler // nil = sin /metrics
	Logger  *zap.Logger
}

type passiveView struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
	Epoch     string `json:"epoch"`
	LastSeq   uint64 `json:"lastAppliedSeq"`
}

type clusterView struct {
	Active     string        `json:"active"`
	Epoch      string        `json:"epoch"`
	LastSeq    uint64        `json:"lastSeq"`
	Configured bool          `json:"configured"`
	Passives   []passiveView `json:"passives"`
}

type storeView struct {
	Name        string   `json:"name"`
	Consistency string   `json:"consistency"`
	Keys        int      `json:"keys"`
	Attached    []string `json:"attached"`
}

type clientView struct {
	ClientID   string    `json:"clientId"`
	LastMsgID  int64     `json:"lastMsgId"`
	AttachedAt time.Time `json:"attachedAt"`
}

type admin struct {
	cluster Cluster
	log     *zap.Logger
}

// NewRouter arma el router chi del admin.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Named("admin")
	}
	h := &admin{cluster: d.Cluster, log: d.Logger}

	r := chi.NewRouter()
	r.Use(WithRequestID(), WithRecover(d.Logger), WithLogging(d.Logger), WithMetrics)

	r.Get("/readyz", h.readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/cluster", h.clusterInfo)
		r.Get("/stores", h.stores)
		r.Get("/stores/{name}", h.store)
		r.Get("/clients", h.clients)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { WriteError(w, ErrNotFound) })
	return r
}

func (h *admin) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.cluster.Active().Stores().Backend().Ping(ctx); err != nil {
		logger.FromOr(r.Context(), h.log).Warn("readiness check failed", logger.Err(err))
		WriteError(w, ErrServiceUnavailable.WithDetail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *admin) clusterInfo(w http.ResponseWriter, r *http.Request) {
	a := h.cluster.Active()
	connected := a.Passives()
	_, configured := a.ServerConfig()

	out := clusterView{
		Active:     a.Name(),
		Epoch:      a.Epoch(),
		LastSeq:    a.LastSeq(),
		Configured: configured,
		Passives:   []passiveView{},
	}
	for _, p := range h.cluster.Passives() {
		pos := p.LastApplied()
		out.Passives = append(out.Passives, passiveView{
			ID:        p.ID(),
			Connected: slices.Contains(connected, p.ID()),
			Epoch:     pos.Epoch,
			LastSeq:   pos.Seq,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *admin) stores(w http.ResponseWriter, r *http.Request) {
	mgr := h.cluster.Active().Stores()
	out := []storeView{}
	for _, name := range mgr.Names() {
		v, err := h.storeView(r.Context(), name)
		if err != nil {
			// destruido entre Names y Get
			continue
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *admin) store(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := h.storeView(r.Context(), name)
	if err != nil {
		var ise *errs.InvalidStoreError
		if errors.As(err, &ise) {
			WriteError(w, ErrNotFound.WithDetail(err.Error()))
			return
		}
		logger.FromOr(r.Context(), h.log).Error("store view", logger.CacheID(name), logger.Err(err))
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *admin) storeView(ctx context.Context, name string) (storeView, error) {
	s, err := h.cluster.Active().Stores().Get(name)
	if err != nil {
		return storeView{}, err
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		return storeView{}, err
	}
	v := storeView{Name: name, Consistency: s.Config().Consistency.String(), Keys: len(keys), Attached: []string{}}
	for _, id := range s.Attached() {
		v.Attached = append(v.Attached, id.String())
	}
	return v, nil
}

func (h *admin) clients(w http.ResponseWriter, r *http.Request) {
	out := []clientView{}
	for _, a := range h.cluster.Active().Tracker().Snapshot() {
		out = append(out, clientView{ClientID: a.ClientID.String(), LastMsgID: a.LastMsgID, AttachedAt: a.AttachedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

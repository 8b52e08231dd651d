// Package tracker mantiene el conjunto de clientes adjuntos a un tier manager.
//
// Cada entity (active o passive) tiene su propio Tracker; nunca es global.
// En el active la validación usa Track; en el passive se replica con Mirror.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Attachment es la metadata de un cliente trackeado.
type Attachment struct {
	ClientID   uuid.UUID
	LastMsgID  int64
	AttachedAt time.Time
}

// Tracker es seguro para uso concurrente.
type Tracker struct {
	c   *gocache.Cache
	now func() time.Time

	// serializa los read-modify-write de LastMsgID (Observe, Mirror)
	mu sync.Mutex
}

// New crea un tracker vacío sin expiración ni janitor.
func New() *Tracker {
	return &Tracker{c: gocache.New(gocache.NoExpiration, 0), now: time.Now}
}

// Track registra id como adjunto. Si ya estaba trackeado devuelve false y un
// *errs.LifecycleError; el estado no cambia.
func (t *Tracker) Track(id uuid.UUID, msgID int64) (bool, error) {
	a := Attachment{ClientID: id, LastMsgID: msgID, AttachedAt: t.now()}
	if err := t.c.Add(id.String(), a, gocache.NoExpiration); err != nil {
		return false, errs.Lifecycle("Client ID %s is already being tracked with Client Id %s", id, id)
	}
	return true, nil
}

// Mirror es el camino idempotente del passive: registra id con el último
// message id que conoce el active. Repetirlo nunca baja LastMsgID.
func (t *Tracker) Mirror(id uuid.UUID, msgID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.c.Add(id.String(), Attachment{ClientID: id, LastMsgID: msgID, AttachedAt: t.now()}, gocache.NoExpiration); err == nil {
		return
	}
	t.raiseLocked(id, msgID)
}

// Untrack quita id; no-op si no estaba.
func (t *Tracker) Untrack(id uuid.UUID) {
	t.c.Delete(id.String())
}

func (t *Tracker) IsTracked(id uuid.UUID) bool {
	_, ok := t.c.Get(id.String())
	return ok
}

// Observe actualiza el último message id visto de un cliente trackeado.
// Ids menores o iguales al conocido se ignoran.
func (t *Tracker) Observe(id uuid.UUID, msgID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.raiseLocked(id, msgID)
}

func (t *Tracker) raiseLocked(id uuid.UUID, msgID int64) {
	v, ok := t.c.Get(id.String())
	if !ok {
		return
	}
	a := v.(Attachment)
	if msgID <= a.LastMsgID {
		return
	}
	a.LastMsgID = msgID
	_ = t.c.Replace(id.String(), a, gocache.NoExpiration)
}

// Get devuelve la metadata de id, si está trackeado.
func (t *Tracker) Get(id uuid.UUID) (Attachment, bool) {
	v, ok := t.c.Get(id.String())
	if !ok {
		return Attachment{}, false
	}
	return v.(Attachment), true
}

// Snapshot devuelve los adjuntos ordenados por ClientID, para sync de passives
// y para el admin HTTP.
func (t *Tracker) Snapshot() []Attachment {
	items := t.c.Items()
	out := make([]Attachment, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Attachment))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID.String() < out[j].ClientID.String() })
	return out
}

func (t *Tracker) Len() int { return t.c.ItemCount() }

// Reset vacía el tracker (inicio de un full sync en el passive).
func (t *Tracker) Reset() { t.c.Flush() }

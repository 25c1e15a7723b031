// Package workspace assembles the per-client engine (session, selector,
// scoped stores and orchestrator) and keeps one per signed-in device.
package workspace

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskhub/internal/engine/bootstrap"
	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/records"
	"taskhub/internal/engine/selector"
	"taskhub/internal/engine/session"
	"taskhub/internal/platform/preferences"
	"taskhub/internal/platform/provider"
)

const DefaultDevice = "default"

type Deps struct {
	Provider    provider.Provider
	Verifier    session.TokenVerifier
	Preferences preferences.Store
	Memberships *membership.Service
}

type Workspace struct {
	DeviceID  string
	Session   *session.Store
	Selector  *selector.Selector
	Tasks     *records.Tasks
	Projects  *records.Projects
	Bootstrap *bootstrap.Orchestrator
}

func New(deps Deps, deviceID string) *Workspace {
	if deviceID == "" {
		deviceID = DefaultDevice
	}

	sess := session.NewStore(deps.Provider, deps.Verifier)
	sel := selector.New(deps.Preferences, sess, deviceID)
	tasks := records.NewTasks(deps.Provider, sess, sel)
	projects := records.NewProjects(deps.Provider, sess, sel, tasks)

	return &Workspace{
		DeviceID:  deviceID,
		Session:   sess,
		Selector:  sel,
		Tasks:     tasks,
		Projects:  projects,
		Bootstrap: bootstrap.New(sess, deps.Memberships, sel, tasks, projects),
	}
}

type cached struct {
	ws       *Workspace
	lastUsed atomic.Int64
}

// Cache keeps the workspaces of active sessions so scoped snapshots and
// readiness survive across requests. Entries idle longer than ttl are
// dropped by Sweep.
type Cache struct {
	deps  Deps
	store sync.Map // map[sessionID/deviceID]*cached
	ttl   time.Duration
}

func NewCache(deps Deps, ttl time.Duration) *Cache {
	return &Cache{deps: deps, ttl: ttl}
}

func key(sessionID, deviceID string) string {
	if deviceID == "" {
		deviceID = DefaultDevice
	}
	return sessionID + "/" + deviceID
}

// New returns a fresh, signed-out workspace for deviceID. It is not cached
// until Put.
func (c *Cache) New(deviceID string) *Workspace {
	return New(c.deps, deviceID)
}

// Put caches a signed-in workspace under its provider session.
func (c *Cache) Put(ws *Workspace) {
	grant, ok := ws.Session.Grant()
	if !ok {
		return
	}
	entry := &cached{ws: ws}
	entry.lastUsed.Store(time.Now().UnixNano())
	c.store.Store(key(grant.SessionID, ws.DeviceID), entry)
}

// Resume returns the cached workspace for grant, creating and caching a
// resumed one when none exists.
func (c *Cache) Resume(grant provider.Grant, deviceID string) *Workspace {
	k := key(grant.SessionID, deviceID)
	if v, ok := c.store.Load(k); ok {
		entry := v.(*cached)
		entry.lastUsed.Store(time.Now().UnixNano())
		return entry.ws
	}

	ws := New(c.deps, deviceID)
	ws.Session.Resume(grant)

	entry := &cached{ws: ws}
	entry.lastUsed.Store(time.Now().UnixNano())
	actual, _ := c.store.LoadOrStore(k, entry)
	return actual.(*cached).ws
}

// Forget drops every workspace of a provider session.
func (c *Cache) Forget(sessionID string) {
	prefix := sessionID + "/"
	c.store.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			c.store.Delete(k)
		}
		return true
	})
}

// Sweep drops workspaces idle since before now-ttl and returns how many were
// removed.
func (c *Cache) Sweep(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-c.ttl).UnixNano()
	removed := 0
	c.store.Range(func(k, v interface{}) bool {
		if v.(*cached).lastUsed.Load() < cutoff {
			c.store.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

func (c *Cache) Len() int {
	n := 0
	c.store.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Current returns the validated organization the workspace is scoped to. It
// reports not ready when the persisted selection has moved elsewhere.
func (ws *Workspace) Current() (string, bool) {
	return ws.Tasks.Organization()
}

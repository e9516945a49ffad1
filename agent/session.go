package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcore/core"
)

// ReadFromStorage loads the persisted session of the current session id and
// merges it into the agent state. It returns nil, nil without storage, or
// when no session is persisted yet.
func (a *Agent) ReadFromStorage(ctx context.Context) (*core.Session, error) {
	if a.opts.Storage == nil {
		return nil, nil
	}
	sessionID := a.SessionID()
	if sessionID == "" {
		return nil, nil
	}
	sess, err := a.opts.Storage.Read(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, nil
	}
	a.loadSession(sess)
	return sess, nil
}

// WriteToStorage upserts the agent state as a session.
func (a *Agent) WriteToStorage(ctx context.Context) (*core.Session, error) {
	if a.opts.Storage == nil {
		return nil, nil
	}
	a.ensureSessionID()
	saved, err := a.opts.Storage.Upsert(ctx, a.session())
	if err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return saved, nil
}

// loadSession merges sess into the agent. For each data map, locally set keys
// win and keys only present in sess are kept.
func (a *Agent) loadSession(sess *core.Session) {
	a.mu.Lock()
	a.agentData = core.MergeData(a.agentData, sess.AgentData)
	a.userData = core.MergeData(a.userData, sess.UserData)
	a.sessionData = core.MergeData(a.sessionData, sess.SessionData)
	adoptUser := a.userID == "" && sess.UserID != ""
	if adoptUser {
		a.userID = sess.UserID
	}
	mem := a.memory
	a.mu.Unlock()

	if adoptUser {
		mem.SetUserID(sess.UserID)
	}
	snap := sess.Memory
	if len(snap.Runs) > 0 || len(snap.Messages) > 0 || snap.Summary != nil || len(snap.Memories) > 0 {
		mem.Restore(snap)
	}
}

// session snapshots the agent state.
func (a *Agent) session() *core.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := core.NewSession(a.sessionID, a.agentID, a.userID)
	s.Memory = a.memory.Snapshot()
	s.AgentData = core.CloneData(a.agentData)
	s.UserData = core.CloneData(a.userData)
	s.SessionData = core.CloneData(a.sessionData)
	return s
}

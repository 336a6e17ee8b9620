// Package cluster implements the per-cluster actor (§4.7), the per-member
// worker (§4.8) and the health checker (§4.9).
package cluster

import (
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

// Actor owns one cluster's current snapshot, its member workers, the
// shared status map, and the load-balancer's round-robin cursor (spec
// §4.7: "a round-robin cursor" is actor-owned state, not recomputed per
// request — the original implementation's bug was never persisting this
// cursor across requests; SPEC_FULL.md §E calls out the fix).
type Actor struct {
	log *logrus.Logger
	svc *services.Services

	name    string
	cfg     config.Cluster
	members map[string]chan<- config.ClusterMessage
	status  *StatusMap

	cursor int

	inbox chan config.ClusterMessage
}

// NewActor spawns no goroutines itself; call Run in its own goroutine.
func NewActor(log *logrus.Logger, svc *services.Services, initial config.Cluster) *Actor {
	a := &Actor{
		log:     log,
		svc:     svc,
		name:    initial.Name,
		members: map[string]chan<- config.ClusterMessage{},
		status:  newStatusMap(),
		inbox:   make(chan config.ClusterMessage, 16),
	}
	return a
}

// Inbox returns the send-only handle the cluster manager forwards
// per-cluster traffic to.
func (a *Actor) Inbox() chan<- config.ClusterMessage { return a.inbox }

// Run applies the initial snapshot and then serves the inbox until it
// receives RemoveCluster or the inbox is closed.
func (a *Actor) Run(initial config.Cluster) {
	a.log.Debugf("Starting cluster %s", initial.Name)
	a.applyConfig(initial)
	for msg := range a.inbox {
		switch msg.Kind {
		case config.ClusterMessageConfigUpdate:
			if !a.handleConfigUpdate(msg.Update) {
				return
			}
		case config.ClusterMessageConnection:
			a.dispatch(msg)
		case config.ClusterMessageConnectionClosed:
			a.status.decActive(msg.ConnectionDone.Member)
		}
	}
}

func (a *Actor) handleConfigUpdate(u config.ConfigUpdate) bool {
	switch u.Kind {
	case config.ConfigUpdateCluster:
		a.applyConfig(u.Cluster)
		return true
	case config.ConfigUpdateRemoveCluster:
		for addr, inbox := range a.members {
			inbox <- config.ClusterMessage{
				Kind:   config.ClusterMessageConfigUpdate,
				Update: config.ConfigUpdate{Kind: config.ConfigUpdateRemoveCluster, Name: a.name},
			}
			a.status.remove(addr)
		}
		a.log.Debugf("cluster %s removed", a.name)
		return false
	case config.ConfigUpdateTLS:
		for _, inbox := range a.members {
			inbox <- config.ClusterMessage{Kind: config.ClusterMessageConfigUpdate, Update: u}
		}
		return true
	}
	return true
}

// applyConfig diffs the new member list against the current one: spawns
// workers for additions, sends RemoveCluster to workers for removals, and
// fans a config update to survivors when the keepalive policy changed
// (§4.7 "On ClusterConfig update").
func (a *Actor) applyConfig(newCfg config.Cluster) {
	keepaliveChanged := !sameKeepalive(a.cfg.Keepalive, newCfg.Keepalive)
	a.cfg = newCfg
	a.name = newCfg.Name

	wanted := map[string]config.ClusterMemberConfig{}
	for _, m := range newCfg.Members {
		wanted[m.Address] = m
		if _, exists := a.members[m.Address]; !exists {
			a.spawnMember(newCfg, m)
		} else {
			a.status.set(m.Address, m.Status)
			if keepaliveChanged {
				a.members[m.Address] <- config.ClusterMessage{
					Kind:   config.ClusterMessageConfigUpdate,
					Update: config.ConfigUpdate{Kind: config.ConfigUpdateCluster, Cluster: newCfg},
				}
			}
		}
	}
	for addr, inbox := range a.members {
		if _, ok := wanted[addr]; !ok {
			inbox <- config.ClusterMessage{
				Kind:   config.ClusterMessageConfigUpdate,
				Update: config.ConfigUpdate{Kind: config.ConfigUpdateRemoveCluster, Name: a.name},
			}
			delete(a.members, addr)
			a.status.remove(addr)
		}
	}
}

func sameKeepalive(a, b *config.Keepalive) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (a *Actor) spawnMember(cfg config.Cluster, member config.ClusterMemberConfig) {
	a.log.Debugf("cluster %s: adding member %s", cfg.Name, member.Address)
	a.status.set(member.Address, member.Status)
	w := NewMember(a.log, a.svc, cfg.Name, member, cfg, a.status)
	a.members[member.Address] = w.Inbox()
	go w.Run()
}

// dispatch implements §4.7's selection algorithm: filter to members whose
// status is not Unavailable, pick by LB method, forward the full message.
func (a *Actor) dispatch(msg config.ClusterMessage) {
	eligible := a.eligibleMembers()
	if len(eligible) == 0 {
		if msg.Connection.Reply != nil {
			msg.Connection.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyNoAvailableMember}
		}
		return
	}

	var target string
	var ok bool
	switch a.cfg.LB {
	case config.LbLeastConn:
		target, ok = a.selectLeastConn(eligible)
	default:
		target, ok = a.selectRoundRobin(eligible)
	}
	if !ok {
		if msg.Connection.Reply != nil {
			msg.Connection.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyNoAvailableMember}
		}
		return
	}
	if inbox, memberOk := a.members[target]; memberOk {
		inbox <- msg
	} else if msg.Connection.Reply != nil {
		msg.Connection.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyNoAvailableMember}
	}
}

// eligibleMembers returns addresses in the snapshot's member order,
// filtering only Unavailable — Disabled members remain eligible for
// round-robin exactly as original_source's member_selection.retain only
// excludes Unavailable (SPEC_FULL.md §E keeps this as the present design).
func (a *Actor) eligibleMembers() []string {
	var out []string
	for _, m := range a.cfg.Members {
		status, _ := a.status.get(m.Address)
		if status != config.MemberUnavailable {
			out = append(out, m.Address)
		}
	}
	return out
}

// selectRoundRobin wraps the actor's persistent cursor modulo the eligible
// set size, returns the member at that position and then advances the
// cursor — the corrected semantics of SPEC_FULL.md §E: the first request lands on
// index 0, and the cursor genuinely advances request to request because
// it lives on the actor, not a fresh local each dispatch.
func (a *Actor) selectRoundRobin(eligible []string) (string, bool) {
	a.cursor = a.cursor % len(eligible)
	target := eligible[a.cursor]
	a.cursor++
	return target, true
}

// selectLeastConn picks the eligible member with the smallest Active(n),
// tie-broken by iteration order — the corrected semantics of SPEC_FULL.md
// §E (the original's comparison picked the largest n). Only members
// currently Active participate (invariant I4); if none are, there is no
// valid selection even though the set was non-empty after the
// Unavailable filter (a Disabled member can be "eligible" in the
// round-robin sense without ever being least-conn selectable).
func (a *Actor) selectLeastConn(eligible []string) (string, bool) {
	best := ""
	bestActive := int64(0)
	found := false
	for _, addr := range eligible {
		status, active := a.status.get(addr)
		if status != config.MemberActive {
			continue
		}
		if !found || active < bestActive {
			best = addr
			bestActive = active
			found = true
		}
	}
	return best, found
}

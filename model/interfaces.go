package model

// Trigger is why a member is being evaluated. Every trigger feeds the same
// idempotent action layer.
type Trigger interface {
	trigger()
	String() string
}

// Joined fires when a member (re)joins the guild.
type Joined struct{}

// RenamedFrom fires when a member's username changes. Old may be empty when
// the previous name is unknown.
type RenamedFrom struct {
	Old string
}

// ReconciliationTick fires from the periodic audit pass.
type ReconciliationTick struct{}

func (Joined) trigger()             {}
func (RenamedFrom) trigger()        {}
func (ReconciliationTick) trigger() {}

func (Joined) String() string             { return "joined" }
func (r RenamedFrom) String() string      { return "renamed" }
func (ReconciliationTick) String() string { return "reconcile" }

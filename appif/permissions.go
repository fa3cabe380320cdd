// Package appif is the in-process command/event channel the Application
// collaborator uses to drive a Router, permissioned by a per-connection
// Permissions record exactly as spec §6 describes ("a permissioned
// command/event channel"). Grounded on rpcserver.go's rpcServer (a thin
// wrapper translating external requests into calls against the embedded
// server), kept here as a plain Go interface instead of a generated
// lnrpc-style gRPC surface — see DESIGN.md for the dropped-dependency
// justification.
package appif

// Permissions gates which Command classes a connected application may
// issue. Fields follow original_source's AppPermissions exactly
// (routes, buyer, seller, config); reports are never gated, matching
// original_source never listing a "reports" bit despite spec prose
// mentioning one — see DESIGN.md's Open Question decision.
type Permissions struct {
	Routes bool
	Buyer  bool
	Seller bool
	Config bool
}

// class identifies which Permissions field governs a Command.
type class uint8

const (
	classReports class = iota
	classRoutes
	classBuyer
	classSeller
	classConfig
)

func (p Permissions) allows(c class) bool {
	switch c {
	case classReports:
		return true
	case classRoutes:
		return p.Routes
	case classBuyer:
		return p.Buyer
	case classSeller:
		return p.Seller
	case classConfig:
		return p.Config
	default:
		return false
	}
}

// Package storepath implements the path grammar clients use to address store
// documents, e.g. users/{id}/portfolio or allVaults/{vaultId}.
package storepath

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidPath is returned for paths outside the subscribable grammar.
var ErrInvalidPath = errors.New("invalid store path")

// Kind identifies which document a path addresses.
type Kind int

const (
	KindUser Kind = iota + 1
	KindPortfolio
	KindStrategy
	KindVaults
	KindVault
	KindVaultActivity
	KindMarkets
	KindPositions
	KindLeaderboard
	KindAnnouncements
)

// Path is a parsed store path.
type Path struct {
	Kind     Kind
	UserID   string
	VaultID  string
	Strategy string
}

// Parse validates raw against the store grammar.
func Parse(raw string) (Path, error) {
	segs := strings.Split(strings.Trim(raw, "/"), "/")
	for _, s := range segs {
		if !validSegment(s) {
			return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
		}
	}

	switch {
	case len(segs) == 1 && segs[0] == "vaults":
		return Path{Kind: KindVaults}, nil
	case len(segs) == 1 && segs[0] == "markets":
		return Path{Kind: KindMarkets}, nil
	case len(segs) == 1 && segs[0] == "leaderboard":
		return Path{Kind: KindLeaderboard}, nil
	case len(segs) == 1 && segs[0] == "announcements":
		return Path{Kind: KindAnnouncements}, nil
	case len(segs) == 2 && segs[0] == "users":
		return Path{Kind: KindUser, UserID: segs[1]}, nil
	case len(segs) == 3 && segs[0] == "users" && segs[2] == "portfolio":
		return Path{Kind: KindPortfolio, UserID: segs[1]}, nil
	case len(segs) == 4 && segs[0] == "users" && segs[2] == "portfolio":
		return Path{Kind: KindStrategy, UserID: segs[1], Strategy: segs[3]}, nil
	case len(segs) == 2 && segs[0] == "allVaults":
		return Path{Kind: KindVault, VaultID: segs[1]}, nil
	case len(segs) == 3 && segs[0] == "allVaults" && segs[2] == "depositsAndWithdrawals":
		return Path{Kind: KindVaultActivity, VaultID: segs[1]}, nil
	case len(segs) == 2 && segs[0] == "userPositions":
		return Path{Kind: KindPositions, UserID: segs[1]}, nil
	}
	return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
}

func validSegment(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// String renders the canonical form of p.
func (p Path) String() string {
	switch p.Kind {
	case KindUser:
		return User(p.UserID)
	case KindPortfolio:
		return Portfolio(p.UserID)
	case KindStrategy:
		return Strategy(p.UserID, p.Strategy)
	case KindVaults:
		return Vaults
	case KindVault:
		return Vault(p.VaultID)
	case KindVaultActivity:
		return VaultActivity(p.VaultID)
	case KindMarkets:
		return Markets
	case KindPositions:
		return Positions(p.UserID)
	case KindLeaderboard:
		return Leaderboard
	case KindAnnouncements:
		return Announcements
	}
	return ""
}

// Owner returns the user a private path belongs to, or "" for public paths.
func (p Path) Owner() string {
	switch p.Kind {
	case KindUser, KindPortfolio, KindStrategy, KindPositions:
		return p.UserID
	}
	return ""
}

const (
	Vaults        = "vaults"
	Markets       = "markets"
	Leaderboard   = "leaderboard"
	Announcements = "announcements"
)

func User(id string) string               { return "users/" + id }
func Portfolio(id string) string          { return User(id) + "/portfolio" }
func Strategy(id, strategy string) string { return Portfolio(id) + "/" + strategy }
func Vault(id string) string              { return "allVaults/" + id }
func VaultActivity(id string) string      { return Vault(id) + "/depositsAndWithdrawals" }
func Positions(id string) string          { return "userPositions/" + id }

// Related reports whether a change at one path can alter the value at the other:
// the paths are equal or one is an ancestor of the other.
func Related(a, b string) bool {
	a, b = strings.Trim(a, "/"), strings.Trim(b, "/")
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return strings.HasPrefix(b, a+"/")
}

package auth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/support-desk/internal/domain"
)

//go:embed model.conf
var policyModel string

//go:embed policy.csv
var policyRules string

// Action names a permission checked against the role policy.
type Action string

const (
	ActionTicketCreate       Action = "ticket:create"
	ActionNotificationRead   Action = "notification:read"
	ActionTicketReadAny      Action = "ticket:read_any"
	ActionTicketUpdateStatus Action = "ticket:update_status"
	ActionTicketAssignSelf   Action = "ticket:assign_self"
	ActionCommentInternal    Action = "comment:internal"
	ActionStatsGlobal        Action = "stats:global"
	ActionUserListStaff      Action = "user:list_staff"
	ActionTicketAssignAny    Action = "ticket:assign_any"
	ActionTicketDeleteAny    Action = "ticket:delete_any"
	ActionReportRead         Action = "report:read"
	ActionTicketExport       Action = "ticket:export"
	ActionUserManage         Action = "user:manage"
)

// Policy answers role permission questions from the embedded casbin policy.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy loads the embedded model and rules.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if err := loadRules(enforcer, policyRules); err != nil {
		return nil, err
	}
	return &Policy{enforcer: enforcer}, nil
}

// MustPolicy is NewPolicy for wiring and tests; the embedded rules are static.
func MustPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

func loadRules(enforcer *casbin.SyncedEnforcer, rules string) error {
	for _, line := range strings.Split(rules, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) != 3 {
			return fmt.Errorf("malformed policy line %q", line)
		}

		var err error
		switch parts[0] {
		case "p":
			_, err = enforcer.AddPolicy(parts[1], parts[2])
		case "g":
			_, err = enforcer.AddGroupingPolicy(parts[1], parts[2])
		default:
			err = fmt.Errorf("unknown policy type %q", parts[0])
		}
		if err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts, err)
		}
	}
	return nil
}

// Can reports whether role may perform action. Unknown roles are denied.
func (p *Policy) Can(role domain.Role, action Action) bool {
	if p == nil || !role.Valid() {
		return false
	}
	allowed, err := p.enforcer.Enforce(role.String(), string(action))
	return err == nil && allowed
}

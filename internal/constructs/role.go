package constructs

import (
	"fmt"

	"github.com/stratus-iac/stratus/internal/ir"
)

// ManagedPolicyAdministratorAccess is the provider-defined administrator
// policy ARN.
const ManagedPolicyAdministratorAccess = "arn:aws:iam::aws:policy/AdministratorAccess"

// RoleProps configures a Role construct.
type RoleProps struct {
	RoleName          string
	AssumedByService  string
	ManagedPolicyARNs []string
}

// Role declares an execution identity with attached managed policies.
type Role struct {
	stack    *Stack
	resource *ir.Resource
}

// NewRole declares a role in the given stack scope.
func NewRole(stack *Stack, id string, props *RoleProps) *Role {
	name := props.RoleName
	if name == "" {
		name = id
	}
	r := &Role{stack: stack}
	r.resource = stack.register(&ir.Resource{
		Type:     "aws:IAM.Role",
		Name:     id,
		Provider: "aws",
		Properties: map[string]any{
			"name":              name,
			"assumeRolePolicy":  assumeRoleDocument(props.AssumedByService),
			"managedPolicyArns": toAnySlice(props.ManagedPolicyARNs),
			"tags":              map[string]string{"Name": name},
		},
	})
	return r
}

// RefName returns a reference to the role's provisioned name.
func (r *Role) RefName() string {
	return ref(r.resource, "name")
}

// ManagedPolicyARNs returns the ARNs declared on the role.
func (r *Role) ManagedPolicyARNs() []string {
	raw, _ := r.resource.Properties["managedPolicyArns"].([]any)
	arns := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			arns = append(arns, s)
		}
	}
	return arns
}

func assumeRoleDocument(service string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":%q},"Action":"sts:AssumeRole"}]}`, service)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

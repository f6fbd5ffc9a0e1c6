package constructs

import (
	"github.com/stratus-iac/stratus/internal/ir"
)

// SecurityGroupProps configures a SecurityGroup construct.
type SecurityGroupProps struct {
	GroupName   string
	Vpc         *Vpc
	Description string
}

// SecurityGroup declares a stateful network boundary attached to a Vpc.
// Groups start with zero ingress rules; trust is granted only through
// AddIngressRule.
type SecurityGroup struct {
	stack    *Stack
	resource *ir.Resource
}

// NewSecurityGroup declares a security group in the given stack scope.
func NewSecurityGroup(stack *Stack, id string, props *SecurityGroupProps) *SecurityGroup {
	name := props.GroupName
	if name == "" {
		name = id
	}
	desc := props.Description
	if desc == "" {
		desc = name
	}
	sg := &SecurityGroup{stack: stack}
	sg.resource = stack.register(&ir.Resource{
		Type:     "aws:EC2.SecurityGroup",
		Name:     id,
		Provider: "aws",
		Properties: map[string]any{
			"name":        name,
			"description": desc,
			"vpcId":       props.Vpc.RefID(),
			"ingress":     []any{},
			"tags":        map[string]string{"Name": name},
		},
	})
	return sg
}

// RefID returns a reference to the group's provisioned id.
func (sg *SecurityGroup) RefID() string {
	return ref(sg.resource, "id")
}

// AddIngressRule permits inbound traffic on the given port from the peer.
// A security-group peer is recorded as an object reference so the engine
// orders the groups and substitutes the provisioned group id.
func (sg *SecurityGroup) AddIngressRule(peer Peer, port Port) {
	rule := map[string]any{
		"protocol": port.Protocol,
		"fromPort": port.From,
		"toPort":   port.To,
	}
	peer.apply(rule)

	rules, _ := sg.resource.Properties["ingress"].([]any)
	sg.resource.Properties["ingress"] = append(rules, rule)
}

// Port is a protocol and port range for a security group rule.
type Port struct {
	Protocol string
	From     int
	To       int
}

// TCP returns a single-port TCP range.
func TCP(port int) Port {
	return Port{Protocol: "tcp", From: port, To: port}
}

// TCPRange returns a TCP port range.
func TCPRange(from, to int) Port {
	return Port{Protocol: "tcp", From: from, To: to}
}

// Peer is the source side of an ingress rule.
type Peer interface {
	apply(rule map[string]any)
}

type securityGroupPeer struct {
	sg *SecurityGroup
}

func (p securityGroupPeer) apply(rule map[string]any) {
	rule["sourceSecurityGroupId"] = p.sg.RefID()
}

// PeerSecurityGroup makes another security group's members the rule source.
func PeerSecurityGroup(sg *SecurityGroup) Peer {
	return securityGroupPeer{sg: sg}
}

type ipv4Peer struct {
	cidr string
}

func (p ipv4Peer) apply(rule map[string]any) {
	blocks, _ := rule["cidrBlocks"].([]any)
	rule["cidrBlocks"] = append(blocks, p.cidr)
}

// PeerIPv4 makes an IPv4 range the rule source.
func PeerIPv4(cidr string) Peer {
	return ipv4Peer{cidr: cidr}
}

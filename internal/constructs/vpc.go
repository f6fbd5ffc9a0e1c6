package constructs

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/stratus-iac/stratus/internal/ir"
)

// SubnetType distinguishes internet-routable subnets from internal ones.
type SubnetType string

const (
	SubnetTypePublic  SubnetType = "public"
	SubnetTypePrivate SubnetType = "private"
)

// SubnetSpec describes one subnet group inside a Vpc.
type SubnetSpec struct {
	Name                string
	Type                SubnetType
	CidrMask            int
	MapPublicIPOnLaunch bool
}

// VpcProps configures a Vpc construct.
type VpcProps struct {
	CidrBlock string
	MaxAzs    int
	Subnets   []SubnetSpec
}

// Subnet is a synthesized subnet belonging to a Vpc.
type Subnet struct {
	Spec     SubnetSpec
	resource *ir.Resource
}

// RefID returns a reference to the subnet's provisioned id.
func (s *Subnet) RefID() string {
	return ref(s.resource, "id")
}

// Vpc declares a virtual network carved into subnets. Public subnets get an
// internet gateway and a shared route table with a default route through it.
type Vpc struct {
	stack          *Stack
	id             string
	resource       *ir.Resource
	PublicSubnets  []*Subnet
	PrivateSubnets []*Subnet
}

// NewVpc declares a Vpc in the given stack scope.
func NewVpc(stack *Stack, id string, props *VpcProps) *Vpc {
	vpc := &Vpc{stack: stack, id: id}
	vpc.resource = stack.register(&ir.Resource{
		Type:     "aws:EC2.Vpc",
		Name:     id,
		Provider: "aws",
		Properties: map[string]any{
			"cidrBlock": props.CidrBlock,
			"tags":      map[string]string{"Name": id},
		},
	})

	azs := props.MaxAzs
	if azs < 1 {
		azs = 1
	}

	// Each subnet group gets one subnet per availability zone, carved out
	// of the VPC range in declaration order.
	block := 0
	for _, spec := range props.Subnets {
		for az := 0; az < azs; az++ {
			cidr, err := subnetCidr(props.CidrBlock, spec.CidrMask, block)
			if err != nil {
				cidr = props.CidrBlock
			}
			block++

			name := fmt.Sprintf("%s-%s", id, strings.ToLower(spec.Name))
			properties := map[string]any{
				"vpcId":               vpc.RefID(),
				"cidrBlock":           cidr,
				"mapPublicIpOnLaunch": spec.MapPublicIPOnLaunch,
				"tags":                map[string]string{"Name": spec.Name},
			}
			if azs > 1 {
				name = fmt.Sprintf("%s-az%d", name, az+1)
				properties["availabilityZoneIndex"] = az
			}

			sub := &Subnet{Spec: spec}
			sub.resource = stack.register(&ir.Resource{
				Type:       "aws:EC2.Subnet",
				Name:       name,
				Provider:   "aws",
				Properties: properties,
			})
			switch spec.Type {
			case SubnetTypePublic:
				vpc.PublicSubnets = append(vpc.PublicSubnets, sub)
			default:
				vpc.PrivateSubnets = append(vpc.PrivateSubnets, sub)
			}
		}
	}

	if len(vpc.PublicSubnets) > 0 {
		igw := stack.register(&ir.Resource{
			Type:     "aws:EC2.InternetGateway",
			Name:     id + "-igw",
			Provider: "aws",
			Properties: map[string]any{
				"vpcId": vpc.RefID(),
				"tags":  map[string]string{"Name": id + "-igw"},
			},
		})

		var subnetIDs []any
		for _, sub := range vpc.PublicSubnets {
			subnetIDs = append(subnetIDs, sub.RefID())
		}
		stack.register(&ir.Resource{
			Type:     "aws:EC2.RouteTable",
			Name:     id + "-public-rt",
			Provider: "aws",
			Properties: map[string]any{
				"vpcId": vpc.RefID(),
				"routes": []any{
					map[string]any{
						"destinationCidrBlock": "0.0.0.0/0",
						"gatewayId":            ref(igw, "id"),
					},
				},
				"subnetIds": subnetIDs,
				"tags":      map[string]string{"Name": id + "-public-rt"},
			},
		})
	}

	return vpc
}

// RefID returns a reference to the VPC's provisioned id.
func (v *Vpc) RefID() string {
	return ref(v.resource, "id")
}

// subnetCidr slices the index-th block of the given mask out of the VPC range.
func subnetCidr(vpcCidr string, mask, index int) (string, error) {
	_, ipnet, err := net.ParseCIDR(vpcCidr)
	if err != nil {
		return "", fmt.Errorf("invalid vpc cidr %q: %w", vpcCidr, err)
	}
	ip := ipnet.IP.To4()
	if ip == nil {
		return "", fmt.Errorf("vpc cidr %q is not IPv4", vpcCidr)
	}
	vpcMask, _ := ipnet.Mask.Size()
	if mask < vpcMask || mask > 30 {
		return "", fmt.Errorf("subnet mask /%d does not fit in %s", mask, vpcCidr)
	}

	base := binary.BigEndian.Uint32(ip)
	offset := uint32(index) << (32 - mask)
	out := make(net.IP, 4)
	binary.BigEndian.PutUint32(out, base+offset)
	return fmt.Sprintf("%s/%d", out, mask), nil
}

package constructs

import (
	"github.com/stratus-iac/stratus/internal/ir"
)

// BlockDevice describes one volume attached at launch. VolumeSize is in GiB.
type BlockDevice struct {
	DeviceName string
	VolumeSize int
}

// InstanceProps configures an Instance construct.
type InstanceProps struct {
	InstanceName string
	InstanceType string
	// MachineImage is an explicit AMI id. When empty the provider resolves
	// the latest Amazon Linux image from the public SSM parameter at apply
	// time.
	MachineImage  string
	Vpc           *Vpc
	SecurityGroup *SecurityGroup
	Role          *Role
	BlockDevices  []BlockDevice
}

// Instance declares a compute instance placed in a Vpc subnet. Attaching a
// Role also synthesizes the instance profile binding the role to the host.
type Instance struct {
	stack    *Stack
	resource *ir.Resource
}

// NewInstance declares an instance in the given stack scope.
func NewInstance(stack *Stack, id string, props *InstanceProps) *Instance {
	inst := &Instance{stack: stack}

	properties := map[string]any{
		"instanceType": props.InstanceType,
		"ami":          props.MachineImage,
		"tags":         map[string]string{"Name": props.InstanceName},
	}

	if props.Vpc != nil && len(props.Vpc.PublicSubnets) > 0 {
		properties["subnetId"] = props.Vpc.PublicSubnets[0].RefID()
	}
	if props.SecurityGroup != nil {
		properties["securityGroupIds"] = []any{props.SecurityGroup.RefID()}
	}

	if props.Role != nil {
		profile := stack.register(&ir.Resource{
			Type:     "aws:IAM.InstanceProfile",
			Name:     id + "-profile",
			Provider: "aws",
			Properties: map[string]any{
				"name": id + "-profile",
				"role": props.Role.RefName(),
			},
		})
		properties["iamInstanceProfile"] = ref(profile, "name")
	}

	if len(props.BlockDevices) > 0 {
		devices := make([]any, 0, len(props.BlockDevices))
		for _, bd := range props.BlockDevices {
			devices = append(devices, map[string]any{
				"deviceName": bd.DeviceName,
				"volumeSize": bd.VolumeSize,
			})
		}
		properties["blockDevices"] = devices
	}

	inst.resource = stack.register(&ir.Resource{
		Type:       "aws:EC2.Instance",
		Name:       id,
		Provider:   "aws",
		Properties: properties,
	})
	return inst
}

// RefID returns a reference to the instance's provisioned id.
func (i *Instance) RefID() string {
	return ref(i.resource, "id")
}

// Package learning defines the learning stack: a single-AZ network, a
// bastion-access security group pair, a deterministically named scratch
// bucket, and the bastion host itself.
package learning

import (
	"github.com/stratus-iac/stratus/internal/constructs"
	"github.com/stratus-iac/stratus/internal/naming"
)

// BucketLabel is the fixed label the bucket name is derived from.
const BucketLabel = "learning-bucket"

// New builds the learning stack in construction order: network, bastion
// group, internal group, bucket, bastion host.
func New(props *constructs.StackProps) *constructs.Stack {
	stack := constructs.NewStack("learning", props)

	vpc := constructs.NewVpc(stack, "network", &constructs.VpcProps{
		CidrBlock: "10.0.0.0/16",
		MaxAzs:    1,
		Subnets: []constructs.SubnetSpec{
			{
				Name:                "Public",
				Type:                constructs.SubnetTypePublic,
				CidrMask:            24,
				MapPublicIPOnLaunch: false,
			},
		},
	})

	bastionGroup := constructs.NewSecurityGroup(stack, "from-bastion", &constructs.SecurityGroupProps{
		GroupName: "from-bastion",
		Vpc:       vpc,
	})

	internalGroup := constructs.NewSecurityGroup(stack, "allow-from-bastion", &constructs.SecurityGroupProps{
		GroupName: "allow-from-bastion",
		Vpc:       vpc,
	})
	internalGroup.AddIngressRule(constructs.PeerSecurityGroup(bastionGroup), constructs.TCP(22))

	constructs.NewBucket(stack, BucketLabel, &constructs.BucketProps{
		BucketName:        naming.HashSuffixed(BucketLabel),
		RemovalPolicy:     constructs.RemovalPolicyDestroy,
		AutoDeleteObjects: true,
	})

	role := constructs.NewRole(stack, "bastion-role", &constructs.RoleProps{
		AssumedByService:  "ec2.amazonaws.com",
		ManagedPolicyARNs: []string{constructs.ManagedPolicyAdministratorAccess},
	})

	constructs.NewInstance(stack, "bastion", &constructs.InstanceProps{
		InstanceName:  "bastion",
		InstanceType:  "c5.large",
		Vpc:           vpc,
		SecurityGroup: bastionGroup,
		Role:          role,
		BlockDevices: []constructs.BlockDevice{
			{DeviceName: "/dev/xvda", VolumeSize: 30},
		},
	})

	return stack
}

package learning

import (
	"testing"

	"github.com/stratus-iac/stratus/internal/constructs"
	"github.com/stratus-iac/stratus/internal/engine"
	"github.com/stratus-iac/stratus/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthLearning(t *testing.T) *ir.Config {
	t.Helper()
	return New(&constructs.StackProps{
		Env: &constructs.Environment{Region: "us-east-1"},
	}).Synth()
}

func resourcesByType(cfg *ir.Config) map[string][]*ir.Resource {
	byType := make(map[string][]*ir.Resource)
	for _, res := range cfg.Resources {
		byType[res.Type] = append(byType[res.Type], res)
	}
	return byType
}

func TestLearningStack_ResourceInventory(t *testing.T) {
	cfg := synthLearning(t)
	byType := resourcesByType(cfg)

	assert.Len(t, byType["aws:EC2.Vpc"], 1)
	assert.Len(t, byType["aws:EC2.Subnet"], 1)
	assert.Len(t, byType["aws:EC2.InternetGateway"], 1)
	assert.Len(t, byType["aws:EC2.RouteTable"], 1)
	assert.Len(t, byType["aws:EC2.SecurityGroup"], 2)
	assert.Len(t, byType["aws:S3.Bucket"], 1)
	assert.Len(t, byType["aws:IAM.Role"], 1)
	assert.Len(t, byType["aws:IAM.InstanceProfile"], 1)
	assert.Len(t, byType["aws:EC2.Instance"], 1)
	assert.Len(t, cfg.Resources, 9)
}

func TestLearningStack_Network(t *testing.T) {
	cfg := synthLearning(t)
	byType := resourcesByType(cfg)

	vpc := byType["aws:EC2.Vpc"][0]
	assert.Equal(t, "10.0.0.0/16", vpc.Properties["cidrBlock"])

	subnet := byType["aws:EC2.Subnet"][0]
	assert.Equal(t, "10.0.0.0/24", subnet.Properties["cidrBlock"])
	assert.Equal(t, false, subnet.Properties["mapPublicIpOnLaunch"],
		"instances do not get public addresses automatically")
	tags, _ := subnet.Properties["tags"].(map[string]string)
	assert.Equal(t, "Public", tags["Name"])
}

func TestLearningStack_SecurityGroups(t *testing.T) {
	cfg := synthLearning(t)
	byType := resourcesByType(cfg)

	groups := make(map[string]*ir.Resource)
	for _, sg := range byType["aws:EC2.SecurityGroup"] {
		groups[sg.Name] = sg
	}
	require.Contains(t, groups, "from-bastion")
	require.Contains(t, groups, "allow-from-bastion")

	// The bastion group grants nothing inbound.
	bastionRules, _ := groups["from-bastion"].Properties["ingress"].([]any)
	assert.Empty(t, bastionRules)

	// The internal group trusts SSH from bastion group members only,
	// referenced by object rather than by a hardcoded id.
	internalRules, ok := groups["allow-from-bastion"].Properties["ingress"].([]any)
	require.True(t, ok)
	require.Len(t, internalRules, 1)

	rule := internalRules[0].(map[string]any)
	assert.Equal(t, "tcp", rule["protocol"])
	assert.Equal(t, 22, rule["fromPort"])
	assert.Equal(t, 22, rule["toPort"])
	assert.Equal(t, "ptr://aws:EC2.SecurityGroup/from-bastion/id", rule["sourceSecurityGroupId"])
	_, hasCidr := rule["cidrBlocks"]
	assert.False(t, hasCidr)
}

func TestLearningStack_Bucket(t *testing.T) {
	cfg := synthLearning(t)
	byType := resourcesByType(cfg)

	bucket := byType["aws:S3.Bucket"][0]
	assert.Equal(t, "learning-bucket-c518d6b29ae8835e70c5573e0073f8fe",
		bucket.Properties["bucket"])
	assert.Equal(t, true, bucket.Properties["forceDestroy"])
	assert.Nil(t, bucket.Lifecycle, "nothing blocks teardown")
}

func TestLearningStack_Bastion(t *testing.T) {
	cfg := synthLearning(t)
	byType := resourcesByType(cfg)

	role := byType["aws:IAM.Role"][0]
	arns, _ := role.Properties["managedPolicyArns"].([]any)
	assert.Equal(t, []any{"arn:aws:iam::aws:policy/AdministratorAccess"}, arns)
	doc, _ := role.Properties["assumeRolePolicy"].(string)
	assert.Contains(t, doc, "ec2.amazonaws.com")

	instance := byType["aws:EC2.Instance"][0]
	assert.Equal(t, "c5.large", instance.Properties["instanceType"])
	assert.Equal(t, "", instance.Properties["ami"],
		"image is resolved by the provider at apply time")
	assert.Equal(t, "ptr://aws:EC2.Subnet/network-public/id", instance.Properties["subnetId"])
	assert.Equal(t, []any{"ptr://aws:EC2.SecurityGroup/from-bastion/id"},
		instance.Properties["securityGroupIds"])

	devices, ok := instance.Properties["blockDevices"].([]any)
	require.True(t, ok)
	require.Len(t, devices, 1)
	device := devices[0].(map[string]any)
	assert.Equal(t, "/dev/xvda", device["deviceName"])
	assert.Equal(t, 30, device["volumeSize"])

	profile := byType["aws:IAM.InstanceProfile"][0]
	assert.Equal(t, "ptr://aws:IAM.Role/bastion-role/name", profile.Properties["role"])
	assert.Equal(t, "ptr://aws:IAM.InstanceProfile/bastion-profile/name",
		instance.Properties["iamInstanceProfile"])
}

func TestLearningStack_GraphIsAcyclic(t *testing.T) {
	cfg := synthLearning(t)

	dag, err := engine.BuildDAG(cfg.Resources)
	require.NoError(t, err)

	order := dag.CreationOrder()
	require.Len(t, order, len(cfg.Resources))

	pos := make(map[string]int, len(order))
	for i, addr := range order {
		pos[addr] = i
	}

	assert.Less(t, pos["aws:EC2.Vpc.network"], pos["aws:EC2.Subnet.network-public"])
	assert.Less(t, pos["aws:EC2.SecurityGroup.from-bastion"], pos["aws:EC2.SecurityGroup.allow-from-bastion"])
	assert.Less(t, pos["aws:EC2.Subnet.network-public"], pos["aws:EC2.Instance.bastion"])
	assert.Less(t, pos["aws:IAM.Role.bastion-role"], pos["aws:IAM.InstanceProfile.bastion-profile"])
	assert.Less(t, pos["aws:IAM.InstanceProfile.bastion-profile"], pos["aws:EC2.Instance.bastion"])
}

func TestLearningStack_SynthIsDeterministic(t *testing.T) {
	first := synthLearning(t)
	second := synthLearning(t)

	require.Len(t, second.Resources, len(first.Resources))
	for i := range first.Resources {
		assert.Equal(t, first.Resources[i].Addr(), second.Resources[i].Addr())
	}
}

package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"

	"github.com/stratus-iac/stratus/pkg/provider"
)

// defaultAMIParameter is the SSM public parameter resolved when an instance
// declares no AMI of its own.
const defaultAMIParameter = "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64"

type BlockDeviceConfig struct {
	DeviceName string `json:"deviceName"`
	VolumeSize int    `json:"volumeSize"`
	VolumeType string `json:"volumeType,omitempty"`
}

type InstanceConfig struct {
	AMI                string              `json:"ami"`
	InstanceType       string              `json:"instanceType"`
	SubnetID           string              `json:"subnetId"`
	SecurityGroupIDs   []string            `json:"securityGroupIds"`
	IamInstanceProfile string              `json:"iamInstanceProfile"`
	BlockDevices       []BlockDeviceConfig `json:"blockDevices"`
	Tags               map[string]string   `json:"tags"`
}

type InstanceState struct {
	ID        string `json:"id"`
	AMI       string `json:"ami"`
	PublicIP  string `json:"publicIp,omitempty"`
	PrivateIP string `json:"privateIp,omitempty"`
}

func (p *Provider) planInstance(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil && req.PriorJSON != nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	var prior InstanceState
	if err := json.Unmarshal(req.PriorJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}

	// Drift: recreate when the instance has been terminated out of band.
	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{prior.ID},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "InvalidInstanceID.NotFound" {
			return &provider.PlanResponse{Action: provider.ActionCreate}, nil
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", prior.ID, err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}
	instance := resp.Reservations[0].Instances[0]
	if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	same, err := jsonEqual(req.DesiredJSON, req.PriorInputsJSON)
	if err != nil {
		return nil, err
	}
	if same {
		return &provider.PlanResponse{Action: provider.ActionNoop}, nil
	}

	// The attributes we manage are launch-time only.
	return &provider.PlanResponse{Action: provider.ActionReplace}, nil
}

func (p *Provider) applyInstance(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired InstanceConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	ami := desired.AMI
	if ami == "" {
		resolved, err := p.resolveAMI(ctx)
		if err != nil {
			return nil, err
		}
		ami = resolved
	}

	runInput := &ec2.RunInstancesInput{
		ImageId:      aws.String(ami),
		InstanceType: types.InstanceType(desired.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if desired.SubnetID != "" {
		runInput.SubnetId = aws.String(desired.SubnetID)
	}
	if len(desired.SecurityGroupIDs) > 0 {
		runInput.SecurityGroupIds = desired.SecurityGroupIDs
	}
	if desired.IamInstanceProfile != "" {
		runInput.IamInstanceProfile = &types.IamInstanceProfileSpecification{
			Name: aws.String(desired.IamInstanceProfile),
		}
	}
	for _, dev := range desired.BlockDevices {
		volumeType := types.VolumeType(dev.VolumeType)
		if dev.VolumeType == "" {
			volumeType = types.VolumeTypeGp3
		}
		runInput.BlockDeviceMappings = append(runInput.BlockDeviceMappings, types.BlockDeviceMapping{
			DeviceName: aws.String(dev.DeviceName),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(dev.VolumeSize)),
				VolumeType:          volumeType,
				DeleteOnTermination: aws.Bool(true),
			},
		})
	}

	resp, err := p.ec2Client.RunInstances(ctx, runInput)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(resp.Instances) == 0 {
		return nil, fmt.Errorf("no instances created")
	}
	instanceID := aws.ToString(resp.Instances[0].InstanceId)

	waiter := ec2.NewInstanceRunningWaiter(p.ec2Client)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}, 5*time.Minute); err != nil {
		return nil, fmt.Errorf("instance %s did not reach running state: %w", instanceID, err)
	}

	p.tagResource(ctx, instanceID, desired.Tags)

	newState := InstanceState{ID: instanceID, AMI: ami}
	desc, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err == nil && len(desc.Reservations) > 0 && len(desc.Reservations[0].Instances) > 0 {
		inst := desc.Reservations[0].Instances[0]
		newState.PublicIP = aws.ToString(inst.PublicIpAddress)
		newState.PrivateIP = aws.ToString(inst.PrivateIpAddress)
	}

	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteInstance(ctx context.Context, req *provider.DeleteRequest) error {
	var prior InstanceState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}

	if _, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{prior.ID},
	}); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "InvalidInstanceID.NotFound" {
			return nil
		}
		return fmt.Errorf("failed to terminate instance %s: %w", prior.ID, err)
	}

	// The subnet and security groups cannot go away until the instance has
	// fully terminated.
	waiter := ec2.NewInstanceTerminatedWaiter(p.ec2Client)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{prior.ID},
	}, 5*time.Minute); err != nil {
		return fmt.Errorf("instance %s did not terminate: %w", prior.ID, err)
	}
	return nil
}

func (p *Provider) readInstance(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var prior InstanceState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if prior.ID == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{prior.ID},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "InvalidInstanceID.NotFound" {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", prior.ID, err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return &provider.ReadResponse{Exists: false}, nil
	}
	inst := resp.Reservations[0].Instances[0]
	if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
		return &provider.ReadResponse{Exists: false}, nil
	}

	prior.PublicIP = aws.ToString(inst.PublicIpAddress)
	prior.PrivateIP = aws.ToString(inst.PrivateIpAddress)
	stateJSON, _ := json.Marshal(prior)
	return &provider.ReadResponse{Exists: true, StateJSON: stateJSON}, nil
}

// resolveAMI looks up the latest Amazon Linux image via its SSM public parameter.
func (p *Provider) resolveAMI(ctx context.Context) (string, error) {
	resp, err := p.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(defaultAMIParameter),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve default AMI: %w", err)
	}
	return aws.ToString(resp.Parameter.Value), nil
}

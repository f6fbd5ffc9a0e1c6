package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"

	"github.com/stratus-iac/stratus/pkg/provider"
)

type RoleConfig struct {
	Name              string            `json:"name"`
	AssumeRolePolicy  string            `json:"assumeRolePolicy"`
	ManagedPolicyARNs []string          `json:"managedPolicyArns"`
	Tags              map[string]string `json:"tags"`
}

type RoleState struct {
	Name              string   `json:"name"`
	ARN               string   `json:"arn"`
	ManagedPolicyARNs []string `json:"managedPolicyArns,omitempty"`
}

func (p *Provider) applyRole(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired RoleConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	input := &iam.CreateRoleInput{
		RoleName:                 aws.String(desired.Name),
		AssumeRolePolicyDocument: aws.String(desired.AssumeRolePolicy),
	}
	for k, v := range desired.Tags {
		input.Tags = append(input.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	resp, err := p.iamClient.CreateRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create role %s: %w", desired.Name, err)
	}

	for _, arn := range desired.ManagedPolicyARNs {
		_, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(desired.Name),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach policy %s to role %s: %w", arn, desired.Name, err)
		}
	}

	newState := RoleState{
		Name:              aws.ToString(resp.Role.RoleName),
		ARN:               aws.ToString(resp.Role.Arn),
		ManagedPolicyARNs: desired.ManagedPolicyARNs,
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteRole(ctx context.Context, req *provider.DeleteRequest) error {
	var prior RoleState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.Name == "" {
		return nil
	}

	// Attached managed policies block role deletion.
	for _, arn := range prior.ManagedPolicyARNs {
		_, _ = p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(prior.Name),
			PolicyArn: aws.String(arn),
		})
	}

	if _, err := p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(prior.Name)}); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NoSuchEntity" {
			return nil
		}
		return fmt.Errorf("failed to delete role %s: %w", prior.Name, err)
	}
	return nil
}

type InstanceProfileConfig struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type InstanceProfileState struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
	Role string `json:"role,omitempty"`
}

func (p *Provider) applyInstanceProfile(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired InstanceProfileConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	_, err := p.iamClient.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(desired.Name),
	})
	if err != nil {
		var ae smithy.APIError
		if !errors.As(err, &ae) || ae.ErrorCode() != "EntityAlreadyExists" {
			return nil, fmt.Errorf("failed to create instance profile %s: %w", desired.Name, err)
		}
	}

	if desired.Role != "" {
		_, err := p.iamClient.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
			InstanceProfileName: aws.String(desired.Name),
			RoleName:            aws.String(desired.Role),
		})
		if err != nil {
			var ae smithy.APIError
			if !errors.As(err, &ae) || ae.ErrorCode() != "LimitExceeded" {
				return nil, fmt.Errorf("failed to add role %s to instance profile %s: %w", desired.Role, desired.Name, err)
			}
		}
	}

	resp, err := p.iamClient.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(desired.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get instance profile %s: %w", desired.Name, err)
	}

	newState := InstanceProfileState{
		Name: desired.Name,
		ARN:  aws.ToString(resp.InstanceProfile.Arn),
		Role: desired.Role,
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteInstanceProfile(ctx context.Context, req *provider.DeleteRequest) error {
	var prior InstanceProfileState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.Name == "" {
		return nil
	}

	if prior.Role != "" {
		_, _ = p.iamClient.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
			InstanceProfileName: aws.String(prior.Name),
			RoleName:            aws.String(prior.Role),
		})
	}

	if _, err := p.iamClient.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(prior.Name),
	}); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NoSuchEntity" {
			return nil
		}
		return fmt.Errorf("failed to delete instance profile %s: %w", prior.Name, err)
	}
	return nil
}

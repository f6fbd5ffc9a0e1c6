// Package aws implements the AWS resource provider: EC2 networking, security
// groups, instances, IAM roles and instance profiles, and S3 buckets.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/stratus-iac/stratus/pkg/provider"
)

type Provider struct {
	mu     sync.Mutex
	region string

	ec2Client *ec2.Client
	iamClient *iam.Client
	s3Client  *s3.Client
	ssmClient *ssm.Client
}

func New() *Provider {
	return &Provider{region: "us-east-1"}
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	if req != nil && req.Region != "" {
		p.region = req.Region
	}
	return p.ensureClients(ctx)
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ec2Client != nil {
		return nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	p.ec2Client = ec2.NewFromConfig(cfg)
	p.iamClient = iam.NewFromConfig(cfg)
	p.s3Client = s3.NewFromConfig(cfg)
	p.ssmClient = ssm.NewFromConfig(cfg)

	return nil
}

func (p *Provider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws:S3.Bucket":
		return p.planBucket(ctx, req)
	case "aws:EC2.Instance":
		return p.planInstance(ctx, req)
	}

	return genericPlan(req)
}

// genericPlan decides the action from the declared inputs alone. Resources
// with drift detection get their own plan functions.
func genericPlan(req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil && req.PriorJSON != nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	same, err := jsonEqual(req.DesiredJSON, req.PriorInputsJSON)
	if err != nil {
		return nil, err
	}
	if same {
		return &provider.PlanResponse{Action: provider.ActionNoop}, nil
	}

	// Networking primitives are immutable for the attributes we manage.
	return &provider.PlanResponse{Action: provider.ActionReplace}, nil
}

func jsonEqual(a, b []byte) (bool, error) {
	var av, bv any
	if len(a) > 0 {
		if err := json.Unmarshal(a, &av); err != nil {
			return false, fmt.Errorf("failed to compare configs: %w", err)
		}
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &bv); err != nil {
			return false, fmt.Errorf("failed to compare configs: %w", err)
		}
	}
	return reflect.DeepEqual(av, bv), nil
}

func (p *Provider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws:EC2.Vpc":
		return p.applyVpc(ctx, req)
	case "aws:EC2.Subnet":
		return p.applySubnet(ctx, req)
	case "aws:EC2.InternetGateway":
		return p.applyInternetGateway(ctx, req)
	case "aws:EC2.RouteTable":
		return p.applyRouteTable(ctx, req)
	case "aws:EC2.SecurityGroup":
		return p.applySecurityGroup(ctx, req)
	case "aws:EC2.Instance":
		return p.applyInstance(ctx, req)
	case "aws:IAM.Role":
		return p.applyRole(ctx, req)
	case "aws:IAM.InstanceProfile":
		return p.applyInstanceProfile(ctx, req)
	case "aws:S3.Bucket":
		return p.applyBucket(ctx, req)
	}

	return nil, fmt.Errorf("unknown resource type: %s", req.Type)
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ensureClients(ctx); err != nil {
		return err
	}

	switch req.Type {
	case "aws:EC2.Vpc":
		return p.deleteVpc(ctx, req)
	case "aws:EC2.Subnet":
		return p.deleteSubnet(ctx, req)
	case "aws:EC2.InternetGateway":
		return p.deleteInternetGateway(ctx, req)
	case "aws:EC2.RouteTable":
		return p.deleteRouteTable(ctx, req)
	case "aws:EC2.SecurityGroup":
		return p.deleteSecurityGroup(ctx, req)
	case "aws:EC2.Instance":
		return p.deleteInstance(ctx, req)
	case "aws:IAM.Role":
		return p.deleteRole(ctx, req)
	case "aws:IAM.InstanceProfile":
		return p.deleteInstanceProfile(ctx, req)
	case "aws:S3.Bucket":
		return p.deleteBucket(ctx, req)
	}

	return fmt.Errorf("unknown resource type: %s", req.Type)
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case "aws:S3.Bucket":
		return p.readBucket(ctx, req)
	case "aws:EC2.Instance":
		return p.readInstance(ctx, req)
	}

	// Resources without a refresh implementation are assumed present.
	return &provider.ReadResponse{Exists: true, StateJSON: req.StateJSON}, nil
}

package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-iac/stratus/internal/logging"
	"github.com/stratus-iac/stratus/pkg/provider"
)

type VpcConfig struct {
	CidrBlock string            `json:"cidrBlock"`
	Tags      map[string]string `json:"tags"`
}

type VpcState struct {
	ID        string `json:"id"`
	CidrBlock string `json:"cidrBlock"`
}

func (p *Provider) applyVpc(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired VpcConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(desired.CidrBlock),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := aws.ToString(resp.Vpc.VpcId)

	p.tagResource(ctx, vpcID, desired.Tags)

	newState := VpcState{ID: vpcID, CidrBlock: desired.CidrBlock}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteVpc(ctx context.Context, req *provider.DeleteRequest) error {
	var prior VpcState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}
	if _, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(prior.ID)}); err != nil {
		return fmt.Errorf("failed to delete VPC %s: %w", prior.ID, err)
	}
	return nil
}

type SubnetConfig struct {
	VpcID               string            `json:"vpcId"`
	CidrBlock           string            `json:"cidrBlock"`
	AvailabilityZone    string            `json:"availabilityZone"`
	AvailabilityZoneIdx *int              `json:"availabilityZoneIndex"`
	MapPublicIPOnLaunch bool              `json:"mapPublicIpOnLaunch"`
	Tags                map[string]string `json:"tags"`
}

type SubnetState struct {
	ID               string `json:"id"`
	VpcID            string `json:"vpcId"`
	AvailabilityZone string `json:"availabilityZone"`
}

func (p *Provider) applySubnet(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired SubnetConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     aws.String(desired.VpcID),
		CidrBlock: aws.String(desired.CidrBlock),
	}
	zone := desired.AvailabilityZone
	if zone == "" && desired.AvailabilityZoneIdx != nil {
		resolved, err := p.resolveAvailabilityZone(ctx, *desired.AvailabilityZoneIdx)
		if err != nil {
			return nil, err
		}
		zone = resolved
	}
	if zone != "" {
		input.AvailabilityZone = aws.String(zone)
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := aws.ToString(resp.Subnet.SubnetId)

	// Subnets launch with the attribute off; only set it when asked for.
	if desired.MapPublicIPOnLaunch {
		_, err := p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable public IP mapping on subnet %s: %w", subnetID, err)
		}
	}

	p.tagResource(ctx, subnetID, desired.Tags)

	newState := SubnetState{
		ID:               subnetID,
		VpcID:            aws.ToString(resp.Subnet.VpcId),
		AvailabilityZone: aws.ToString(resp.Subnet.AvailabilityZone),
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

// resolveAvailabilityZone maps a zero-based index to the region's available
// zones in API order.
func (p *Provider) resolveAvailabilityZone(ctx context.Context, index int) (string, error) {
	resp, err := p.ec2Client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list availability zones: %w", err)
	}
	if len(resp.AvailabilityZones) == 0 {
		return "", fmt.Errorf("no available zones in region %s", p.region)
	}
	zone := resp.AvailabilityZones[index%len(resp.AvailabilityZones)]
	return aws.ToString(zone.ZoneName), nil
}

func (p *Provider) deleteSubnet(ctx context.Context, req *provider.DeleteRequest) error {
	var prior SubnetState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}
	if _, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(prior.ID)}); err != nil {
		return fmt.Errorf("failed to delete subnet %s: %w", prior.ID, err)
	}
	return nil
}

type InternetGatewayConfig struct {
	VpcID string            `json:"vpcId"`
	Tags  map[string]string `json:"tags"`
}

type InternetGatewayState struct {
	ID    string `json:"id"`
	VpcID string `json:"vpcId"`
}

func (p *Provider) applyInternetGateway(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired InternetGatewayConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(resp.InternetGateway.InternetGatewayId)

	if desired.VpcID != "" {
		_, err := p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(desired.VpcID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach internet gateway %s: %w", igwID, err)
		}
	}

	p.tagResource(ctx, igwID, desired.Tags)

	newState := InternetGatewayState{ID: igwID, VpcID: desired.VpcID}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, req *provider.DeleteRequest) error {
	var prior InternetGatewayState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}
	if prior.VpcID != "" {
		_, _ = p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(prior.ID),
			VpcId:             aws.String(prior.VpcID),
		})
	}
	if _, err := p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(prior.ID),
	}); err != nil {
		return fmt.Errorf("failed to delete internet gateway %s: %w", prior.ID, err)
	}
	return nil
}

type RouteConfig struct {
	DestinationCidrBlock string `json:"destinationCidrBlock"`
	GatewayID            string `json:"gatewayId,omitempty"`
	NatGatewayID         string `json:"natGatewayId,omitempty"`
}

type RouteTableConfig struct {
	VpcID     string            `json:"vpcId"`
	Routes    []RouteConfig     `json:"routes"`
	SubnetIDs []string          `json:"subnetIds"`
	Tags      map[string]string `json:"tags"`
}

type RouteTableState struct {
	ID             string   `json:"id"`
	AssociationIDs []string `json:"associationIds"`
}

func (p *Provider) applyRouteTable(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired RouteTableConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId: aws.String(desired.VpcID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := aws.ToString(resp.RouteTable.RouteTableId)

	for _, route := range desired.Routes {
		input := &ec2.CreateRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String(route.DestinationCidrBlock),
		}
		if route.GatewayID != "" {
			input.GatewayId = aws.String(route.GatewayID)
		}
		if route.NatGatewayID != "" {
			input.NatGatewayId = aws.String(route.NatGatewayID)
		}
		if _, err := p.ec2Client.CreateRoute(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to create route to %s: %w", route.DestinationCidrBlock, err)
		}
	}

	var associations []string
	for _, subnetID := range desired.SubnetIDs {
		assoc, err := p.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(rtID),
			SubnetId:     aws.String(subnetID),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to associate route table with subnet %s: %w", subnetID, err)
		}
		associations = append(associations, aws.ToString(assoc.AssociationId))
	}

	p.tagResource(ctx, rtID, desired.Tags)

	newState := RouteTableState{ID: rtID, AssociationIDs: associations}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, req *provider.DeleteRequest) error {
	var prior RouteTableState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}
	for _, assoc := range prior.AssociationIDs {
		_, _ = p.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
			AssociationId: aws.String(assoc),
		})
	}
	if _, err := p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(prior.ID)}); err != nil {
		return fmt.Errorf("failed to delete route table %s: %w", prior.ID, err)
	}
	return nil
}

type SecurityGroupRule struct {
	Protocol              string   `json:"protocol"`
	FromPort              int      `json:"fromPort"`
	ToPort                int      `json:"toPort"`
	CidrBlocks            []string `json:"cidrBlocks,omitempty"`
	SourceSecurityGroupID string   `json:"sourceSecurityGroupId,omitempty"`
}

type SecurityGroupConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	VpcID       string              `json:"vpcId"`
	Ingress     []SecurityGroupRule `json:"ingress"`
	Tags        map[string]string   `json:"tags"`
}

type SecurityGroupState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Provider) applySecurityGroup(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired SecurityGroupConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	input := &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(desired.Name),
		Description: aws.String(desired.Description),
	}
	if desired.VpcID != "" {
		input.VpcId = aws.String(desired.VpcID)
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create security group %s: %w", desired.Name, err)
	}
	groupID := aws.ToString(resp.GroupId)

	if len(desired.Ingress) > 0 {
		var perms []types.IpPermission
		for _, rule := range desired.Ingress {
			perm := types.IpPermission{
				IpProtocol: aws.String(rule.Protocol),
				FromPort:   aws.Int32(int32(rule.FromPort)),
				ToPort:     aws.Int32(int32(rule.ToPort)),
			}
			for _, cidr := range rule.CidrBlocks {
				perm.IpRanges = append(perm.IpRanges, types.IpRange{CidrIp: aws.String(cidr)})
			}
			if rule.SourceSecurityGroupID != "" {
				perm.UserIdGroupPairs = []types.UserIdGroupPair{
					{GroupId: aws.String(rule.SourceSecurityGroupID)},
				}
			}
			perms = append(perms, perm)
		}
		_, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: perms,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize ingress on %s: %w", desired.Name, err)
		}
	}

	p.tagResource(ctx, groupID, desired.Tags)

	newState := SecurityGroupState{ID: groupID, Name: desired.Name}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, req *provider.DeleteRequest) error {
	var prior SecurityGroupState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.ID == "" {
		return nil
	}
	if _, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(prior.ID)}); err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", prior.ID, err)
	}
	return nil
}

// tagResource is best effort; tag failures are logged, not fatal.
func (p *Provider) tagResource(ctx context.Context, id string, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	var ec2Tags []types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	if _, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	}); err != nil {
		logging.Warn("failed to tag resource", "id", id, "error", err)
	}
}

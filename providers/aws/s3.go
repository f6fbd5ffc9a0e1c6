package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/stratus-iac/stratus/internal/logging"
	"github.com/stratus-iac/stratus/pkg/provider"
)

type BucketConfig struct {
	Bucket       string `json:"bucket"`
	ForceDestroy bool   `json:"forceDestroy"`
}

type BucketState struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
}

func (p *Provider) planBucket(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil && req.PriorJSON != nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	var prior BucketState
	if err := json.Unmarshal(req.PriorJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	var desired BucketConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	// Drift: bucket deleted out of band means create it again.
	_, err := p.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(prior.Name)})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NotFound" {
			return &provider.PlanResponse{Action: provider.ActionCreate}, nil
		}
		return nil, fmt.Errorf("failed to check bucket %s: %w", prior.Name, err)
	}

	if prior.Name != desired.Bucket {
		return &provider.PlanResponse{Action: provider.ActionReplace}, nil
	}

	same, err := jsonEqual(req.DesiredJSON, req.PriorInputsJSON)
	if err != nil {
		return nil, err
	}
	if !same {
		return &provider.PlanResponse{Action: provider.ActionUpdate}, nil
	}
	return &provider.PlanResponse{Action: provider.ActionNoop}, nil
}

func (p *Provider) applyBucket(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired BucketConfig
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(desired.Bucket)}
	// us-east-1 rejects an explicit location constraint.
	if p.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}

	_, err := p.s3Client.CreateBucket(ctx, input)
	if err != nil {
		// Re-creating a bucket we already own is fine.
		var ae smithy.APIError
		if !errors.As(err, &ae) || ae.ErrorCode() != "BucketAlreadyOwnedByYou" {
			return nil, fmt.Errorf("failed to create bucket %s: %w", desired.Bucket, err)
		}
	}

	newState := BucketState{
		Name: desired.Bucket,
		ARN:  fmt.Sprintf("arn:aws:s3:::%s", desired.Bucket),
	}
	stateJSON, _ := json.Marshal(newState)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) deleteBucket(ctx context.Context, req *provider.DeleteRequest) error {
	var prior BucketState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return fmt.Errorf("failed to unmarshal prior state: %w", err)
	}
	if prior.Name == "" {
		return nil
	}

	var inputs BucketConfig
	if len(req.InputsJSON) > 0 {
		if err := json.Unmarshal(req.InputsJSON, &inputs); err != nil {
			return fmt.Errorf("failed to unmarshal inputs: %w", err)
		}
	}

	if inputs.ForceDestroy {
		if err := p.drainBucket(ctx, prior.Name); err != nil {
			return err
		}
	}

	if _, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(prior.Name)}); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", prior.Name, err)
	}
	return nil
}

// drainBucket deletes every object in the bucket, page by page.
func (p *Provider) drainBucket(ctx context.Context, bucket string) error {
	paginator := s3.NewListObjectsV2Paginator(p.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var ae smithy.APIError
			if errors.As(err, &ae) && ae.ErrorCode() == "NoSuchBucket" {
				return nil
			}
			return fmt.Errorf("failed to list objects in %s: %w", bucket, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		var objects []s3types.ObjectIdentifier
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}
		resp, err := p.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in %s: %w", bucket, err)
		}
		for _, derr := range resp.Errors {
			logging.Warn("object delete failed", "bucket", bucket, "key", aws.ToString(derr.Key), "code", aws.ToString(derr.Code))
		}
	}
	return nil
}

func (p *Provider) readBucket(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	var prior BucketState
	if err := json.Unmarshal(req.StateJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if prior.Name == "" {
		return &provider.ReadResponse{Exists: false}, nil
	}

	_, err := p.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(prior.Name)})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "NotFound" {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to check bucket %s: %w", prior.Name, err)
	}
	return &provider.ReadResponse{Exists: true, StateJSON: req.StateJSON}, nil
}

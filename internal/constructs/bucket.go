package constructs

import (
	"github.com/stratus-iac/stratus/internal/ir"
)

// RemovalPolicy governs what happens to a resource's data when the stack is
// destroyed.
type RemovalPolicy string

const (
	RemovalPolicyDestroy RemovalPolicy = "destroy"
	RemovalPolicyRetain  RemovalPolicy = "retain"
)

// BucketProps configures a Bucket construct.
type BucketProps struct {
	BucketName        string
	RemovalPolicy     RemovalPolicy
	AutoDeleteObjects bool
}

// Bucket declares an object store. With RemovalPolicyDestroy and
// AutoDeleteObjects the provider drains all contained objects before deleting
// the bucket, so teardown never leaves an orphan behind.
type Bucket struct {
	stack    *Stack
	resource *ir.Resource
}

// NewBucket declares a bucket in the given stack scope.
func NewBucket(stack *Stack, id string, props *BucketProps) *Bucket {
	b := &Bucket{stack: stack}
	res := &ir.Resource{
		Type:     "aws:S3.Bucket",
		Name:     id,
		Provider: "aws",
		Properties: map[string]any{
			"bucket":       props.BucketName,
			"forceDestroy": props.RemovalPolicy == RemovalPolicyDestroy && props.AutoDeleteObjects,
		},
	}
	if props.RemovalPolicy == RemovalPolicyRetain {
		res.Lifecycle = &ir.Lifecycle{PreventDestroy: true}
	}
	b.resource = stack.register(res)
	return b
}

// BucketName returns the declared bucket name.
func (b *Bucket) BucketName() string {
	name, _ := b.resource.Properties["bucket"].(string)
	return name
}

// RefARN returns a reference to the bucket's provisioned ARN.
func (b *Bucket) RefARN() string {
	return ref(b.resource, "arn")
}

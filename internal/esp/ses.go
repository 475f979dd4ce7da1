package esp

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// SESClient is the subset of *sesv2.Client used here.
type SESClient interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends through AWS SES v2.
type SES struct {
	client SESClient
}

// NewSES wraps an SES client.
func NewSES(client SESClient) *SES { return &SES{client: client} }

// NewSESFromCredentials builds an SES client. Static keys are used when both
// are set; otherwise the default AWS credential chain applies.
func NewSESFromCredentials(ctx context.Context, accessKey, secretKey, region string) (*SES, error) {
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSES(sesv2.NewFromConfig(cfg)), nil
}

// Send implements delivery.Adapter.
func (s *SES) Send(ctx context.Context, msg delivery.Message) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: sesTags(msg.Tags),
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: ses: %v", delivery.ErrRejected, err)
	}
	return aws.ToString(out.MessageId), nil
}

func sesTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]types.MessageTag, 0, len(names))
	for _, k := range names {
		out = append(out, types.MessageTag{Name: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aweiler/ragserve/internal/config"
)

// Vision wraps the Bedrock runtime Converse API for image understanding.
type Vision struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewVision creates a vision model client using the default AWS credential
// chain.
func NewVision(ctx context.Context, cfg config.Config) (*Vision, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Vision{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.VisionModel,
	}, nil
}

// Describe asks the vision model about an image. The image is passed as raw
// PNG bytes; pass nil for a text-only prompt against the vision model.
func (v *Vision) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	content := []types.ContentBlock{
		&types.ContentBlockMemberText{Value: prompt},
	}
	if len(image) > 0 {
		content = append(content, &types.ContentBlockMemberImage{
			Value: types.ImageBlock{
				Format: types.ImageFormatPng,
				Source: &types.ImageSourceMemberBytes{Value: image},
			},
		})
	}

	out, err := v.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(v.modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: content,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(msg.Value.Content) == 0 {
		return "", fmt.Errorf("empty vision response")
	}
	text, ok := msg.Value.Content[0].(*types.ContentBlockMemberText)
	if !ok {
		return "", fmt.Errorf("unexpected vision response content")
	}
	return text.Value, nil
}

// Model returns the vision model identifier.
func (v *Vision) Model() string {
	return v.modelID
}

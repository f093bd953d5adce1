package client

import (
	"context"

	"github.com/menta2k/portrait-studio/pkg/types"
)

// VisionClient is a chat-capable vision model backend that can locate faces.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error)
}

package gcp

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/probe365/advocacia-ia-sub000/internal/infrastructure/resilience"
)

// LanguageHints steer document text detection towards Portuguese.
var LanguageHints = []string{"pt", "en"}

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionOCR recognizes text with Cloud Vision document text detection.
type VisionOCR struct {
	annotate annotateFunc
	close    func() error
	executor *resilience.Executor
}

func NewVisionOCR(ctx context.Context, executor *resilience.Executor) (*VisionOCR, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &VisionOCR{
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		close:    client.Close,
		executor: executor,
	}, nil
}

func (v *VisionOCR) Close() error {
	if v.close == nil {
		return nil
	}
	return v.close()
}

func (v *VisionOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: image},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: LanguageHints},
		}},
	}

	var text string
	err := resilience.Call(ctx, v.executor, "vision.annotate", func(callCtx context.Context) error {
		resp, err := v.annotate(callCtx, req)
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Responses) == 0 {
			text = ""
			return nil
		}
		r0 := resp.Responses[0]
		if r0.Error != nil && r0.Error.Message != "" {
			return fmt.Errorf("vision annotate: %s", r0.Error.Message)
		}
		if r0.FullTextAnnotation != nil {
			text = r0.FullTextAnnotation.Text
		}
		return nil
	}, classifyRPC)
	if err != nil {
		return "", resilience.External("vision annotate", err, classifyRPC)
	}
	return strings.TrimSpace(text), nil
}

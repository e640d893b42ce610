package browser

import (
	"context"
	"time"
)

// CaptchaResult is the outcome of one recognition
type CaptchaResult struct {
	Text       string
	Confidence float64
	Elapsed    time.Duration
}

// CaptchaRecognizer reads login captchas. It is used by the login flow only.
type CaptchaRecognizer interface {
	LoadTrainingData(ctx context.Context, path string) error
	Recognize(ctx context.Context, image []byte) (*CaptchaResult, error)
}

// RecognizeFromElement captures the captcha image at selector and passes it to r
func RecognizeFromElement(ctx context.Context, b Browser, r CaptchaRecognizer, selector string) (*CaptchaResult, error) {
	image, err := b.ElementScreenshot(ctx, selector)
	if err != nil {
		return nil, err
	}
	return r.Recognize(ctx, image)
}

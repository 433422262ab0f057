package cms

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	domerrors "github.com/openct/openct-cms/internal/errors"
)

// CaptchaPath is the CAPTCHA image endpoint relative to the login URL.
const CaptchaPath = "CheckCode.aspx"

// FetchCAPTCHA streams the CAPTCHA image for loginURL into w. The image is
// bound to the transport's cookies, so the same transport must be used
// for the login that follows.
func FetchCAPTCHA(ctx context.Context, t Transport, loginURL string, w io.Writer) (int64, error) {
	return t.Download(ctx, loginURL+CaptchaPath, w)
}

// SaveCAPTCHA writes the CAPTCHA image to dest. The file is written to a
// temporary sibling first so a failed download never leaves a partial image.
func SaveCAPTCHA(ctx context.Context, t Transport, loginURL, dest string) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".captcha-*")
	if err != nil {
		return domerrors.NewTransportError(loginURL+CaptchaPath, 0, fmt.Errorf("create destination: %w", err))
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := FetchCAPTCHA(ctx, t, loginURL, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return domerrors.NewTransportError(loginURL+CaptchaPath, 0, fmt.Errorf("close destination: %w", err))
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return domerrors.NewTransportError(loginURL+CaptchaPath, 0, fmt.Errorf("move destination: %w", err))
	}
	return nil
}
